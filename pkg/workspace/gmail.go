package workspace

import (
	"encoding/base64"
	"fmt"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

const gmailUser = "me"

// ListThreadIDs 返回用户邮箱中所有会话线程的 ID。
func ListThreadIDs(srv *gmail.Service) ([]string, error) {
	var ids []string
	pageToken := ""
	for {
		call := srv.Users.Threads.List(gmailUser)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("unable to list threads: %w", err)
		}
		for _, t := range resp.Threads {
			ids = append(ids, t.Id)
		}
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return ids, nil
}

// GetThread 拉取一个完整的会话线程（含报文体）。
func GetThread(srv *gmail.Service, threadID string) (*gmail.Thread, error) {
	thread, err := srv.Users.Threads.Get(gmailUser, threadID).Format("full").Do()
	if err != nil {
		return nil, fmt.Errorf("unable to get thread %s: %w", threadID, err)
	}
	return thread, nil
}

// Header 返回报文头的值，大小写不敏感，缺失时返回空串。
func Header(msg *gmail.Message, name string) string {
	if msg.Payload == nil {
		return ""
	}
	for _, h := range msg.Payload.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// MessageBody 提取报文的 text/plain 正文，多段拼接。
// 没有纯文本段时退回 text/html 原文。
func MessageBody(msg *gmail.Message) string {
	if msg.Payload == nil {
		return ""
	}
	var plain, html strings.Builder
	collectBody(msg.Payload, &plain, &html)
	if plain.Len() > 0 {
		return plain.String()
	}
	return html.String()
}

func collectBody(part *gmail.MessagePart, plain, html *strings.Builder) {
	if part == nil {
		return
	}
	if strings.HasPrefix(part.MimeType, "multipart/") {
		for _, p := range part.Parts {
			collectBody(p, plain, html)
		}
		return
	}
	if part.Filename != "" || part.Body == nil || part.Body.Data == "" {
		return
	}
	decoded, err := base64.URLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		return
	}
	switch part.MimeType {
	case "text/plain":
		if plain.Len() > 0 {
			plain.WriteString("\n\n")
		}
		plain.Write(decoded)
	case "text/html":
		if html.Len() > 0 {
			html.WriteString("\n\n")
		}
		html.Write(decoded)
	}
}

// AttachmentParts 返回报文中所有带附件的部分。
func AttachmentParts(msg *gmail.Message) []*gmail.MessagePart {
	if msg.Payload == nil {
		return nil
	}
	var parts []*gmail.MessagePart
	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		if p.Filename != "" && p.Body != nil && p.Body.AttachmentId != "" {
			parts = append(parts, p)
		}
		for _, child := range p.Parts {
			walk(child)
		}
	}
	walk(msg.Payload)
	return parts
}

// FetchAttachment 下载并解码一个附件的内容。
func FetchAttachment(srv *gmail.Service, messageID, attachmentID string) ([]byte, error) {
	att, err := srv.Users.Messages.Attachments.Get(gmailUser, messageID, attachmentID).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to fetch attachment: %w", err)
	}
	data, err := base64.URLEncoding.DecodeString(att.Data)
	if err != nil {
		return nil, fmt.Errorf("unable to decode attachment: %w", err)
	}
	return data, nil
}
