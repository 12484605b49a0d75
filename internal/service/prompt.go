// Package service 实现了业务逻辑层, 串联检索、提示词组装与大模型调用。
package service

import (
	"fmt"
	"strings"

	"workspace-assistant-go/internal/model"
)

// RefusalAnswer 上下文不足时模型必须返回的拒答文案, 与大模型之间的约定, 不可改动。
const RefusalAnswer = "I can't answer it based on the data."

// 检索结果为空时的兜底回答, 直接返回给用户, 不再调用大模型。
const (
	FallbackNoEmails     = "No emails found."
	FallbackNoDriveFiles = "No drive files found."
)

// metaString 从文档元数据中取出字符串字段, 缺失时返回兜底值。
func metaString(metadata map[string]interface{}, key, fallback string) string {
	if metadata == nil {
		return fallback
	}
	value, ok := metadata[key]
	if !ok || value == nil {
		return fallback
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

// FormatEmails 将检索到的邮件文档渲染为带元数据的编号文本块。
func FormatEmails(documents []model.Document) string {
	blocks := make([]string, 0, len(documents))
	for i, doc := range documents {
		md := doc.Metadata
		block := fmt.Sprintf(
			"Email #%d:\n"+
				"From: %s\n"+
				"To: %s\n"+
				"CC: %s\n"+
				"Date: %s\n"+
				"Subject: %s\n\n"+
				"Content:\n"+
				"%s\n"+
				"-------------------",
			i+1,
			metaString(md, "from", "Unknown"),
			metaString(md, "to", "Unknown"),
			metaString(md, "cc", "None"),
			metaString(md, "date", "Unknown"),
			metaString(md, "subject", "No Subject"),
			doc.Content,
		)
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n")
}

// FormatDrive 将检索到的云盘文档渲染为带元数据的编号文本块。
func FormatDrive(documents []model.Document) string {
	blocks := make([]string, 0, len(documents))
	for i, doc := range documents {
		md := doc.Metadata
		block := fmt.Sprintf(
			"Drive File #%d:\n"+
				"File Name: %s\n"+
				"File Type: %s\n"+
				"File Path: %s\n\n"+
				"Content:\n"+
				"%s\n"+
				"-------------------",
			i+1,
			metaString(md, "file_name", "Unknown"),
			metaString(md, "file_type", "Unknown"),
			metaString(md, "file_path", "Unknown"),
			doc.Content,
		)
		blocks = append(blocks, block)
	}
	return strings.Join(blocks, "\n")
}

// CreatePromptEmail 组装邮件问答的完整提示词。指令框架是与模型的契约, 逐字保留。
func CreatePromptEmail(emailsData, query string) string {
	systemPrompt := "You are an e-mail QA chatbot.\n" +
		"Use the following emails to answer the question at the end in Korean.\n" +
		"If you don't know the answer based on the emails, just say 'I can't answer it based on the data.'.\n"

	return "<start_of_turn>user\n" +
		systemPrompt + "\n\n" +
		"Retrieved Emails:\n" + emailsData + "\n\n" +
		"Question: " + query + "\n\n" +
		"Answer:<end_of_turn>\n" +
		"<start_of_turn>model\n"
}

// CreatePromptDrive 组装云盘问答的完整提示词。指令框架是与模型的契约, 逐字保留。
func CreatePromptDrive(driveData, query string) string {
	systemPrompt := "You are a Google Drive QA chatbot.\n" +
		"Use the following drive files to answer the question at the end in the language of the question.\n" +
		"If you don't know the answer based on the drive files, respond with 'I can't answer it based on the data.'.\n"

	return "<start_of_turn>user\n" +
		systemPrompt + "\n\n" +
		"Retrieved Drive Files:\n" + driveData + "\n\n" +
		"Question: " + query + "\n\n" +
		"Answer:<end_of_turn>\n" +
		"<start_of_turn>model\n"
}
