package gateway

import (
	"fmt"
	"strings"

	"github.com/tejzpr/filerequest-bot/internal/request"
)

const timeLayout = "2006-01-02 15:04:05"

const (
	msgGroupsOnly     = "This command can only be used in groups!"
	msgRequestUsage   = "Please use the format: /request @username link_name url"
	msgStatusUsage    = "Please use the format: /status request_id"
	msgMentionNeeded  = "Please mention the user with @"
	msgNothingPending = "No pending requests in this group!"
	msgInternal       = "⚠️ Something went wrong while handling that. Please try again."
)

func renderStart(botName string) string {
	return fmt.Sprintf("👋 Welcome to the %s!\n\n"+
		"I help manage file requests in groups. Here's how to use me:\n\n"+
		"1. To request a file from someone:\n"+
		"   /request @username link_name url\n\n"+
		"2. To view pending requests:\n"+
		"   /queue\n\n"+
		"3. To check one request:\n"+
		"   /status request_id\n\n"+
		"4. To get help:\n"+
		"   /help", botName)
}

func renderHelp() string {
	return "📚 Available commands:\n\n" +
		"/start - Start the bot\n" +
		"/help - Show this help message\n" +
		"/request @username link_name url - Request a file from a user\n" +
		"/queue - Show pending requests in this group\n" +
		"/status request_id - Show the state of a request"
}

func renderCreated(r request.Request, requester Sender) string {
	return fmt.Sprintf("📝 New file request:\n"+
		"Request ID: %s\n"+
		"From: %s\n"+
		"To: %s\n"+
		"Link: %s\n"+
		"URL: %s", r.ID, requester.Mention(), r.Target, r.Label, r.Reference)
}

func renderQueue(pending []request.Request) string {
	if len(pending) == 0 {
		return msgNothingPending
	}
	var b strings.Builder
	b.WriteString("📋 Pending Requests:\n")
	for _, r := range pending {
		fmt.Fprintf(&b, "\nRequest ID: %s\nFrom: %s\nTo: %s\nLink: %s\nURL: %s\nCreated: %s\n",
			r.ID, r.Requester, r.Target, r.Label, r.Reference, r.CreatedAt.Format(timeLayout))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderStatus(r request.Request) string {
	text := fmt.Sprintf("🔎 Request %s\nStatus: %s\nFrom: %s\nTo: %s\nLink: %s\nURL: %s\nCreated: %s",
		r.ID, r.Status, r.Requester, r.Target, r.Label, r.Reference, r.CreatedAt.Format(timeLayout))
	if r.CompletedAt != nil {
		text += fmt.Sprintf("\nCompleted: %s\nUploaded by: %s", r.CompletedAt.Format(timeLayout), r.Fulfiller)
	}
	return text
}

func renderNotFound(id string) string {
	return fmt.Sprintf("Request %s was not found in this group.", id)
}

func renderCompleted(r request.Request, uploader Sender) string {
	return fmt.Sprintf("✅ Request %s has been completed!\nFile uploaded by %s", r.ID, uploader.Mention())
}
