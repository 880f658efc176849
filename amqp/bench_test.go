package amqp_test

import (
	"testing"

	"github.com/Thejuampi/amqp-client-go/amqp"
	"github.com/Thejuampi/amqp-client-go/amqp/internal/testutil"
)

func BenchmarkConnectionHandshake(b *testing.B) {
	b.ReportAllocs()
	for range b.N {
		conn := amqp.NewConnection(testutil.NewEngine())
		opened := make(chan struct{})
		conn.SetOpenHandler(func(amqp.AsyncResult[*amqp.Connection]) { close(opened) }).Open()
		conn.Deliver(&amqp.OpenFrame{ContainerID: "peer"})
		<-opened
		conn.Disconnect()
		<-conn.Done()
	}
}

func BenchmarkLinkAttachDetach(b *testing.B) {
	engine := testutil.NewEngine()
	conn := amqp.NewConnection(engine)
	opened := make(chan struct{})
	conn.SetOpenHandler(func(amqp.AsyncResult[*amqp.Connection]) { close(opened) }).Open()
	conn.Deliver(&amqp.OpenFrame{ContainerID: "peer"})
	<-opened
	session := conn.CreateSession().Open()
	conn.Deliver(&amqp.BeginFrame{Channel: 1, RemoteChannel: testutil.Channel(session.Channel())})

	b.ReportAllocs()
	b.ResetTimer()
	for i := range b.N {
		closed := make(chan struct{})
		sender := session.CreateSender("queue").
			SetCloseHandler(func(amqp.AsyncResult[*amqp.Sender]) { close(closed) }).
			Open()
		handle := uint32(i)
		conn.Deliver(&amqp.AttachFrame{Channel: 1, Handle: handle, Name: sender.Name(), Role: amqp.RoleReceiver, Address: testutil.Address("queue")})
		sender.Close()
		conn.Deliver(&amqp.DetachFrame{Channel: 1, Handle: handle, Closed: true})
		<-closed
	}
	b.StopTimer()
	conn.Disconnect()
	<-conn.Done()
}
