package constants

type ContextKey string

const (
	AppKey       ContextKey = "app"
	PoolKey      ContextKey = "pool"
	TxKey        ContextKey = "tx"
	LoggerKey    ContextKey = "logger"
	LocalizerKey ContextKey = "localizer"
	SubjectKey   ContextKey = "subject"
	RequestStart ContextKey = "request-start"
)
