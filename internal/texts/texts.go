// Package texts holds the reply texts the bot sends in chat.
package texts

// Replies holds every text the bot sends back in a chat.
// Templates use fmt verbs as noted.
type Replies struct {
	DefaultStart string
	DefaultHelp  string

	OwnerOnly    string
	InvalidLink  string
	FilesSent    string
	DeleteNotice string // %d minutes
	SendFailed   string

	SetMessageUsage string
	SetMessageNames string
	MessageUpdated  string // %s message name

	BroadcastUsage string
	BroadcastDone  string // %d delivered, %d failed, %d skipped

	UploadStarted   string
	ItemReceived    string
	ItemRejected    string
	AskProtect      string
	InvalidProtect  string
	AskTimer        string
	InvalidTimer    string
	UploadComplete  string // %s deep link
	StartHint       string // %s session id
	CommitFailed    string
	UploadCancelled string
	NoUpload        string

	InternalError string
}

// Default returns the built-in reply texts
func Default() Replies {
	return Replies{
		DefaultStart: "Welcome to the vault! Use /help for info.",
		DefaultHelp:  "Available commands: /start, /help",

		OwnerOnly:    "Only the owner can use this command.",
		InvalidLink:  "Invalid or expired link.",
		FilesSent:    "Files sent. You can use this link again to get files.",
		DeleteNotice: "These messages will be deleted in %d minute(s).",
		SendFailed:   "Sorry, the files could not be sent. Please try again later.",

		SetMessageUsage: "Usage: /setmessage <start|help> <your message>",
		SetMessageNames: "Only 'start' or 'help' can be set.",
		MessageUpdated:  "%s message updated.",

		BroadcastUsage: "Usage: /broadcast <message>",
		BroadcastDone:  "Broadcast sent. Delivered: %d, failed: %d, skipped: %d.",

		UploadStarted:   "Send files (any type). You can send multiple files. Send /d when done.",
		ItemReceived:    "File received. Continue or send /d to finish.",
		ItemRejected:    "This message could not be added. Try another file or send /d to finish.",
		AskProtect:      "Protect content? (on/off)",
		InvalidProtect:  "Invalid. Reply on or off.",
		AskTimer:        "Auto-delete timer? (0 for never, or minutes up to 10080 for 7 days)",
		InvalidTimer:    "Invalid. Enter minutes: 0 to 10080.",
		UploadComplete:  "Upload complete!\nDeep link: %s",
		StartHint:       "If the link only opens the chat, send: /start %s",
		CommitFailed:    "Saving the upload failed. Send the timer again to retry, or /cancel.",
		UploadCancelled: "Upload cancelled.",
		NoUpload:        "No upload in progress.",

		InternalError: "Something went wrong, please try again.",
	}
}
