package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

// Attachment is the resource part of an image, file or media message.
// Its JSON form is the payload reference stored with a session item.
type Attachment struct {
	Type     string `json:"type"` // image, file, media
	ImageKey string `json:"image_key,omitempty"`
	FileKey  string `json:"file_key,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Duration int    `json:"duration,omitempty"` // milliseconds, media only
}

// Valid reports whether a carries the keys its type needs
func (a Attachment) Valid() bool {
	switch a.Type {
	case MsgTypeImage:
		return a.ImageKey != ""
	case MsgTypeFile, MsgTypeMedia:
		return a.FileKey != ""
	}
	return false
}

// EncodePayload serializes a into an opaque payload reference
func EncodePayload(a Attachment) string {
	b, _ := json.Marshal(a)
	return string(b)
}

// DecodePayload parses a payload reference produced by EncodePayload
func DecodePayload(ref string) (Attachment, error) {
	var a Attachment
	if err := json.Unmarshal([]byte(ref), &a); err != nil {
		return Attachment{}, fmt.Errorf("decode payload: %w", err)
	}
	if !a.Valid() {
		return Attachment{}, fmt.Errorf("decode payload: incomplete %q attachment", a.Type)
	}
	return a, nil
}

// Rehost copies the resources of a, received in message messageID, into
// bot-owned image and file keys so they can be sent to any user later.
func (c *Client) Rehost(ctx context.Context, messageID string, a Attachment) (Attachment, error) {
	out := a
	switch a.Type {
	case MsgTypeImage:
		key, err := c.rehostImage(ctx, messageID, a.ImageKey)
		if err != nil {
			return Attachment{}, err
		}
		out.ImageKey = key

	case MsgTypeFile, MsgTypeMedia:
		fileType := fileTypeFor(a)
		key, err := c.rehostFile(ctx, messageID, a.FileKey, fileType, a.FileName, a.Duration)
		if err != nil {
			return Attachment{}, err
		}
		out.FileKey = key
		if a.Type == MsgTypeMedia && a.ImageKey != "" {
			cover, err := c.rehostImage(ctx, messageID, a.ImageKey)
			if err != nil {
				return Attachment{}, err
			}
			out.ImageKey = cover
		}

	default:
		return Attachment{}, fmt.Errorf("unsupported attachment type %q", a.Type)
	}
	c.log.Debug().Str("type", a.Type).Str("message_id", messageID).Msg("attachment rehosted")
	return out, nil
}

func (c *Client) download(ctx context.Context, messageID, key, resourceType string) (io.Reader, error) {
	req := larkim.NewGetMessageResourceReqBuilder().
		MessageId(messageID).
		FileKey(key).
		Type(resourceType).
		Build()

	resp, err := c.larkCli.Im.MessageResource.Get(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", resourceType, err)
	}
	if !resp.Success() {
		return nil, fmt.Errorf("get %s error: %s", resourceType, resp.Msg)
	}
	return resp.File, nil
}

func (c *Client) rehostImage(ctx context.Context, messageID, imageKey string) (string, error) {
	body, err := c.download(ctx, messageID, imageKey, "image")
	if err != nil {
		return "", err
	}

	req := larkim.NewCreateImageReqBuilder().
		Body(larkim.NewCreateImageReqBodyBuilder().
			ImageType(larkim.ImageTypeMessage).
			Image(body).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Image.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload image failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload image error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.ImageKey == nil {
		return "", fmt.Errorf("upload image: empty image key")
	}
	return *resp.Data.ImageKey, nil
}

func (c *Client) rehostFile(ctx context.Context, messageID, fileKey, fileType, fileName string, duration int) (string, error) {
	body, err := c.download(ctx, messageID, fileKey, "file")
	if err != nil {
		return "", err
	}
	if fileName == "" {
		fileName = fileKey
	}

	bodyBuilder := larkim.NewCreateFileReqBodyBuilder().
		FileType(fileType).
		FileName(fileName).
		File(body)
	if duration > 0 {
		bodyBuilder = bodyBuilder.Duration(duration)
	}
	req := larkim.NewCreateFileReqBuilder().Body(bodyBuilder.Build()).Build()

	resp, err := c.larkCli.Im.File.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("upload file failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("upload file error: %s", resp.Msg)
	}
	if resp.Data == nil || resp.Data.FileKey == nil {
		return "", fmt.Errorf("upload file: empty file key")
	}
	return *resp.Data.FileKey, nil
}

// fileTypeFor maps an attachment to the upload file_type Feishu expects
func fileTypeFor(a Attachment) string {
	if a.Type == MsgTypeMedia {
		return larkim.FileTypeMp4
	}
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(a.FileName), ".")) {
	case "pdf":
		return larkim.FileTypePdf
	case "doc", "docx":
		return larkim.FileTypeDoc
	case "xls", "xlsx":
		return larkim.FileTypeXls
	case "ppt", "pptx":
		return larkim.FileTypePpt
	case "mp4":
		return larkim.FileTypeMp4
	case "opus":
		return larkim.FileTypeOpus
	}
	return larkim.FileTypeStream
}
