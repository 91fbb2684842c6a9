package domain

type RoomID string

// FileRecord is one file in a room's workspace. The id is generated by the
// creating client and is unique within the room for the record's lifetime.
// Character-level merging of content belongs to the replication primitive;
// at this level every field is a plain last-writer-wins overwrite.
type FileRecord struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language"`
	Content  string `json:"content"`
}

// ChatMessage is a room chat line as stored and replayed over the history API.
type ChatMessage struct {
	RoomID   RoomID `json:"roomId"`
	Username string `json:"username"`
	Message  string `json:"message"`
	Time     string `json:"time"`
}
