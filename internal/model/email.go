package model

// EmailConversation 对应邮件导出文件 email_conversations.json 中的一个会话。
// 字段名与导出格式保持一致，不做重命名。
type EmailConversation struct {
	ConversationID string         `json:"ConversationID"`
	Topic          string         `json:"Topic"`
	Messages       []EmailMessage `json:"Messages"`
}

// EmailMessage 是会话中的一条邮件。
type EmailMessage struct {
	SenderName      string         `json:"SenderName"`
	To              string         `json:"To"`
	CC              string         `json:"CC"`
	ReceivedTime    string         `json:"ReceivedTime"`
	Subject         string         `json:"Subject"`
	Body            string         `json:"Body"`
	ForwardedBy     *ForwardedInfo `json:"ForwardedBy,omitempty"`
	AttachmentFiles []string       `json:"AttachmentFiles,omitempty"`
}

// ForwardedInfo 记录转发邮件的原始发件人。
type ForwardedInfo struct {
	From string `json:"From"`
}
