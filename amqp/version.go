package amqp

// ClientVersion and ProductName are advertised in the default connection properties.
const (
	ClientVersion = "0.1.0"
	ProductName   = "amqp-client-go"
)

func defaultProperties() map[Symbol]any {
	return map[Symbol]any{
		SymbolProduct: ProductName,
		SymbolVersion: ClientVersion,
	}
}
