package dialogue

// Event is an input to Machine.Apply.
type Event interface {
	isEvent()
}

// Message is one inbound chat message.
type Message struct {
	Text        string
	AutoConfirm bool
}

// AIAnswer carries the outcome of an AI question back to the session that
// asked it.
type AIAnswer struct {
	Epoch    uint64
	NoteID   int64
	Question string
	Text     string
	Err      error
}

func (Message) isEvent()  {}
func (AIAnswer) isEvent() {}

// Outbox delivers replies produced by the machine.
type Outbox interface {
	// Deliver sends text to one session.
	Deliver(sessionID, text string)
	// Broadcast sends text to every connected session.
	Broadcast(text string)
}
