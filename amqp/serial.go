package amqp

import (
	"math/rand"
	"strconv"
	"time"

	"code.hybscloud.com/atomix"
)

// counter numbers generated container ids and link names process-wide.
var counter atomix.Uint32

func nextSerial() uint32 {
	return counter.Add(1)
}

func newContainerID() string {
	return "amqp-client-go-" + strconv.FormatInt(time.Now().Unix(), 10) +
		"-" + strconv.FormatInt(rand.Int63n(1000000000000), 10) +
		"-" + strconv.FormatUint(uint64(nextSerial()), 10)
}

func newLinkName(container string, role Role) string {
	return container + "-" + role.String() + "-" + strconv.FormatUint(uint64(nextSerial()), 10)
}
