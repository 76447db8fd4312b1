package mqtt

import "fmt"

// TopicPrefix is the root of every focuserd topic.
const TopicPrefix = "focuser"

// Topics builds the topics of one focuser.
//
//	topics := mqtt.Topics{ID: "west"}
//	topics.Event("homed") // "focuser/west/event/homed"
type Topics struct {
	ID string
}

// Status returns the retained status snapshot topic.
func (t Topics) Status() string {
	return fmt.Sprintf("%s/%s/status", TopicPrefix, t.ID)
}

// Event returns the topic for events of the given kind.
func (t Topics) Event(kind string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefix, t.ID, kind)
}

// AllEvents returns a wildcard matching every event of this focuser.
func (t Topics) AllEvents() string {
	return fmt.Sprintf("%s/%s/event/#", TopicPrefix, t.ID)
}

// Online returns the online marker topic, also used for the Last Will.
func (t Topics) Online() string {
	return fmt.Sprintf("%s/%s/online", TopicPrefix, t.ID)
}
