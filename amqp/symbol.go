package amqp

// Symbol is an interned protocol identifier. Property map keys and capability
// lists use this keyspace rather than plain strings.
type Symbol string

// Well-known symbols used during connection negotiation.
const (
	SymbolProduct        Symbol = "product"
	SymbolVersion        Symbol = "version"
	SymbolAnonymousRelay Symbol = "ANONYMOUS-RELAY"
)

// Condition names defined by the AMQP 1.0 error registry plus the local
// condition reported when an entity is closed before its remote open arrived.
const (
	ConditionInternalError         Symbol = "amqp:internal-error"
	ConditionNotFound              Symbol = "amqp:not-found"
	ConditionUnauthorizedAccess    Symbol = "amqp:unauthorized-access"
	ConditionNotImplemented        Symbol = "amqp:not-implemented"
	ConditionIllegalState          Symbol = "amqp:illegal-state"
	ConditionResourceLimitExceeded Symbol = "amqp:resource-limit-exceeded"
	ConditionConnectionForced      Symbol = "amqp:connection:forced"
	ConditionLinkDetachForced      Symbol = "amqp:link:detach-forced"
	ConditionClosedBeforeOpen      Symbol = "closed-before-remote-open"
)

func (symbol Symbol) String() string { return string(symbol) }

func containsSymbol(symbols []Symbol, target Symbol) bool {
	for _, symbol := range symbols {
		if symbol == target {
			return true
		}
	}
	return false
}

func cloneSymbols(symbols []Symbol) []Symbol {
	if symbols == nil {
		return nil
	}
	return append([]Symbol(nil), symbols...)
}
