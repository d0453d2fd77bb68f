package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/devricklin/feishu-vault/internal/texts"
)

// RepliesConfig contains the bot reply texts loaded from YAML.
// Empty values fall back to the built-in texts.
type RepliesConfig struct {
	Entry     EntryReplies     `yaml:"entry"`
	Delivery  DeliveryReplies  `yaml:"delivery"`
	Messages  MessageReplies   `yaml:"messages"`
	Broadcast BroadcastReplies `yaml:"broadcast"`
	Upload    UploadReplies    `yaml:"upload"`
	Errors    ErrorReplies     `yaml:"errors"`
}

// EntryReplies are the defaults for the canned start and help messages
type EntryReplies struct {
	Start string `yaml:"start"`
	Help  string `yaml:"help"`
}

// DeliveryReplies are sent around deep link delivery
type DeliveryReplies struct {
	OwnerOnly    string `yaml:"owner_only"`
	InvalidLink  string `yaml:"invalid_link"`
	FilesSent    string `yaml:"files_sent"`
	DeleteNotice string `yaml:"delete_notice"`
	SendFailed   string `yaml:"send_failed"`
}

// MessageReplies answer /setmessage
type MessageReplies struct {
	Usage   string `yaml:"usage"`
	Names   string `yaml:"names"`
	Updated string `yaml:"updated"`
}

// BroadcastReplies answer /broadcast
type BroadcastReplies struct {
	Usage string `yaml:"usage"`
	Done  string `yaml:"done"`
}

// UploadReplies guide the operator through an upload
type UploadReplies struct {
	Started        string `yaml:"started"`
	ItemReceived   string `yaml:"item_received"`
	ItemRejected   string `yaml:"item_rejected"`
	AskProtect     string `yaml:"ask_protect"`
	InvalidProtect string `yaml:"invalid_protect"`
	AskTimer       string `yaml:"ask_timer"`
	InvalidTimer   string `yaml:"invalid_timer"`
	Complete       string `yaml:"complete"`
	StartHint      string `yaml:"start_hint"`
	CommitFailed   string `yaml:"commit_failed"`
	Cancelled      string `yaml:"cancelled"`
	NoUpload       string `yaml:"no_upload"`
}

// ErrorReplies are sent when a request fails unexpectedly
type ErrorReplies struct {
	Internal string `yaml:"internal"`
}

// LoadRepliesConfig loads reply texts from a YAML file.
// With an empty path the usual locations are tried; no file means defaults.
func LoadRepliesConfig(configPath string) (*RepliesConfig, string, error) {
	paths := []string{configPath}
	if configPath == "" {
		paths = []string{
			"configs/replies.yaml",
			"/etc/feishu-vault/replies.yaml",
		}
		if execPath, err := os.Executable(); err == nil {
			paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "replies.yaml"))
		}
	}

	var data []byte
	var loadedPath string
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err == nil {
			data, loadedPath = b, p
			break
		}
		if configPath != "" {
			return nil, "", fmt.Errorf("failed to read %s: %w", configPath, err)
		}
	}

	if data == nil {
		return DefaultRepliesConfig(), "", nil
	}

	var config RepliesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, "", fmt.Errorf("failed to parse %s: %w", loadedPath, err)
	}
	config.fillDefaults()

	return &config, loadedPath, nil
}

// fillDefaults fills in default values for empty fields
func (c *RepliesConfig) fillDefaults() {
	d := DefaultRepliesConfig()

	fill(&c.Entry.Start, d.Entry.Start)
	fill(&c.Entry.Help, d.Entry.Help)

	fill(&c.Delivery.OwnerOnly, d.Delivery.OwnerOnly)
	fill(&c.Delivery.InvalidLink, d.Delivery.InvalidLink)
	fill(&c.Delivery.FilesSent, d.Delivery.FilesSent)
	fill(&c.Delivery.DeleteNotice, d.Delivery.DeleteNotice)
	fill(&c.Delivery.SendFailed, d.Delivery.SendFailed)

	fill(&c.Messages.Usage, d.Messages.Usage)
	fill(&c.Messages.Names, d.Messages.Names)
	fill(&c.Messages.Updated, d.Messages.Updated)

	fill(&c.Broadcast.Usage, d.Broadcast.Usage)
	fill(&c.Broadcast.Done, d.Broadcast.Done)

	fill(&c.Upload.Started, d.Upload.Started)
	fill(&c.Upload.ItemReceived, d.Upload.ItemReceived)
	fill(&c.Upload.ItemRejected, d.Upload.ItemRejected)
	fill(&c.Upload.AskProtect, d.Upload.AskProtect)
	fill(&c.Upload.InvalidProtect, d.Upload.InvalidProtect)
	fill(&c.Upload.AskTimer, d.Upload.AskTimer)
	fill(&c.Upload.InvalidTimer, d.Upload.InvalidTimer)
	fill(&c.Upload.Complete, d.Upload.Complete)
	fill(&c.Upload.StartHint, d.Upload.StartHint)
	fill(&c.Upload.CommitFailed, d.Upload.CommitFailed)
	fill(&c.Upload.Cancelled, d.Upload.Cancelled)
	fill(&c.Upload.NoUpload, d.Upload.NoUpload)

	fill(&c.Errors.Internal, d.Errors.Internal)
}

func fill(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

// DefaultRepliesConfig returns the built-in reply texts
func DefaultRepliesConfig() *RepliesConfig {
	r := texts.Default()
	return &RepliesConfig{
		Entry: EntryReplies{Start: r.DefaultStart, Help: r.DefaultHelp},
		Delivery: DeliveryReplies{
			OwnerOnly:    r.OwnerOnly,
			InvalidLink:  r.InvalidLink,
			FilesSent:    r.FilesSent,
			DeleteNotice: r.DeleteNotice,
			SendFailed:   r.SendFailed,
		},
		Messages:  MessageReplies{Usage: r.SetMessageUsage, Names: r.SetMessageNames, Updated: r.MessageUpdated},
		Broadcast: BroadcastReplies{Usage: r.BroadcastUsage, Done: r.BroadcastDone},
		Upload: UploadReplies{
			Started:        r.UploadStarted,
			ItemReceived:   r.ItemReceived,
			ItemRejected:   r.ItemRejected,
			AskProtect:     r.AskProtect,
			InvalidProtect: r.InvalidProtect,
			AskTimer:       r.AskTimer,
			InvalidTimer:   r.InvalidTimer,
			Complete:       r.UploadComplete,
			StartHint:      r.StartHint,
			CommitFailed:   r.CommitFailed,
			Cancelled:      r.UploadCancelled,
			NoUpload:       r.NoUpload,
		},
		Errors: ErrorReplies{Internal: r.InternalError},
	}
}

// ToReplies converts to the command service reply texts
func (c *RepliesConfig) ToReplies() texts.Replies {
	return texts.Replies{
		DefaultStart: c.Entry.Start,
		DefaultHelp:  c.Entry.Help,

		OwnerOnly:    c.Delivery.OwnerOnly,
		InvalidLink:  c.Delivery.InvalidLink,
		FilesSent:    c.Delivery.FilesSent,
		DeleteNotice: c.Delivery.DeleteNotice,
		SendFailed:   c.Delivery.SendFailed,

		SetMessageUsage: c.Messages.Usage,
		SetMessageNames: c.Messages.Names,
		MessageUpdated:  c.Messages.Updated,

		BroadcastUsage: c.Broadcast.Usage,
		BroadcastDone:  c.Broadcast.Done,

		UploadStarted:   c.Upload.Started,
		ItemReceived:    c.Upload.ItemReceived,
		ItemRejected:    c.Upload.ItemRejected,
		AskProtect:      c.Upload.AskProtect,
		InvalidProtect:  c.Upload.InvalidProtect,
		AskTimer:        c.Upload.AskTimer,
		InvalidTimer:    c.Upload.InvalidTimer,
		UploadComplete:  c.Upload.Complete,
		StartHint:       c.Upload.StartHint,
		CommitFailed:    c.Upload.CommitFailed,
		UploadCancelled: c.Upload.Cancelled,
		NoUpload:        c.Upload.NoUpload,

		InternalError: c.Errors.Internal,
	}
}
