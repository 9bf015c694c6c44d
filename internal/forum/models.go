package forum

// Wire types for the forum service JSON payloads. Field names follow the
// service's PascalCase contract exactly; mapping to domain types happens in
// the client.

type pageListResponse struct {
	List []pageItem `json:"List"`
}

type pageItem struct {
	Name string `json:"Name"`
	Guid string `json:"Guid"`
}

type roomListRequest struct {
	Guid string `json:"guid"`
}

type roomListResponse struct {
	Rooms []roomItem `json:"Rooms"`
}

type roomItem struct {
	Guid               string `json:"Guid"`
	Name               string `json:"Name"`
	IsVisible          bool   `json:"IsVisible"`
	ConversationsCount int    `json:"ConversationsCount"`
}

type conversationListRequest struct {
	PageGuid   string `json:"pageGuid"`
	RoomGuid   string `json:"roomGuid"`
	PageNumber int    `json:"pageNumber"`
	Limit      int    `json:"limit"`
}

type conversationListResponse struct {
	Items []conversationItem `json:"Items"`
}

type conversationItem struct {
	Guid                   string `json:"Guid"`
	RoomGuid               string `json:"RoomGuid"`
	Title                  string `json:"Title"`
	Message                string `json:"Message"`
	Username               string `json:"Username"`
	ParticipantDisplayName string `json:"ParticipantDisplayName"`
	CreatedByName          string `json:"CreatedByName"`
	IsLiked                bool   `json:"IsLiked"`
	DatePosted             string `json:"DatePosted"`
}

// replyRequest is JSON-encoded into the multipart "request" form field of
// ReplyToConversation. Type 4 is a forum reply; Stimuli and Attachments are
// always sent empty but must be present.
type replyRequest struct {
	Room              string   `json:"Room"`
	Guid              string   `json:"Guid"`
	ParentMessageGuid string   `json:"ParentMessageGuid"`
	Message           string   `json:"Message"`
	Type              int      `json:"Type"`
	Stimuli           []string `json:"Stimuli"`
	Attachments       []string `json:"Attachments"`
}

type likeRequest struct {
	ConversationGuid string `json:"ConversationGuid"`
}
