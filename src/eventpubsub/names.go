package eventpubsub

const (
	RunStartedEvent   = "RunStartedEvent"
	OrderFilledEvent  = "OrderFilledEvent"
	OrderSkippedEvent = "OrderSkippedEvent"
	RunCompletedEvent = "RunCompletedEvent"
	RunFailedEvent    = "RunFailedEvent"
)
