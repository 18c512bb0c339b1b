package websocket

// Message is the JSON frame pushed to every connected listener: a type
// discriminant plus the decoded event fields.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
