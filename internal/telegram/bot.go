package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"github.com/zombor/arabic-ocr/internal/extraction"
)

const (
	// maxMessageRunes is the Telegram limit for a single text message
	maxMessageRunes = 4096

	// maxDownloadBytes matches the Bot API getFile limit
	maxDownloadBytes = 20 << 20

	// maxConcurrent bounds the number of messages processed at once
	maxConcurrent = 4
)

const (
	msgHelp = "أرسل صورة أو ملف PDF يحتوي على نص عربي وسأعيد لك النص المستخرج.\n" +
		"الصيغ المدعومة: JPEG وPNG وGIF وWebP وBMP وTIFF وHEIC وPDF."
	msgUnknownCommand = "أمر غير معروف. أرسل /start للمساعدة."
	msgUnsupported    = "هذا النوع من الملفات غير مدعوم. أرسل صورة أو ملف PDF."
	msgTooLarge       = "حجم الملف كبير جداً. الحد الأقصى 20 ميغابايت."
	msgDownloadFailed = "تعذر تنزيل الملف. حاول مرة أخرى."
)

// Extractor runs a single extraction
type Extractor interface {
	Extract(ctx context.Context, filename string, r io.Reader) (*extraction.Extraction, error)
}

// botAPI is the subset of *tgbotapi.BotAPI used by Bot
type botAPI interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot answers Telegram messages carrying images with the extracted text
type Bot struct {
	api        botAPI
	service    Extractor
	httpClient *http.Client
}

// New connects to the Bot API with token
func New(token string, service Extractor) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating telegram bot: %w", err)
	}
	slog.Info("Telegram bot authorized", "username", api.Self.UserName)
	return newBot(api, service, &http.Client{Timeout: 60 * time.Second}), nil
}

func newBot(api botAPI, service Extractor, client *http.Client) *Bot {
	return &Bot{
		api:        api,
		service:    service,
		httpClient: client,
	}
}

// Run long-polls for updates until ctx is cancelled
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	slog.Info("Starting telegram bot")
	return b.serve(ctx, updates)
}

func (b *Bot) serve(ctx context.Context, updates <-chan tgbotapi.Update) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrent)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			if upd.Message == nil {
				continue
			}
			msg := upd.Message
			g.Go(func() error {
				b.handleMessage(ctx, msg)
				return nil
			})
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.reply(msg, msgHelp)
		default:
			b.reply(msg, msgUnknownCommand)
		}
		return
	}

	fileID, filename, size, ok := attachment(msg)
	if !ok {
		if msg.Document != nil {
			b.reply(msg, msgUnsupported)
			return
		}
		b.reply(msg, msgHelp)
		return
	}
	if size > maxDownloadBytes {
		b.reply(msg, msgTooLarge)
		return
	}

	if _, err := b.api.Request(tgbotapi.NewChatAction(msg.Chat.ID, tgbotapi.ChatTyping)); err != nil {
		slog.Debug("Failed to send chat action", "chat_id", msg.Chat.ID, "error", err)
	}

	body, err := b.download(ctx, fileID)
	if err != nil {
		slog.Error("Failed to download telegram file", "chat_id", msg.Chat.ID, "file_id", fileID, "error", err)
		b.reply(msg, msgDownloadFailed)
		return
	}
	defer body.Close()

	result, err := b.service.Extract(ctx, filename, io.LimitReader(body, maxDownloadBytes))
	if err != nil {
		b.reply(msg, extraction.ErrorMessage(err))
		return
	}

	for _, chunk := range splitMessage(result.Text, maxMessageRunes) {
		b.reply(msg, chunk)
	}
}

// attachment returns the file to extract from msg. Photos resolve to their
// largest size; documents must be an image or a PDF.
func attachment(msg *tgbotapi.Message) (fileID, filename string, size int, ok bool) {
	if len(msg.Photo) > 0 {
		ph := msg.Photo[len(msg.Photo)-1]
		return ph.FileID, "photo.jpg", ph.FileSize, true
	}
	if doc := msg.Document; doc != nil {
		if strings.HasPrefix(doc.MimeType, "image/") || doc.MimeType == "application/pdf" {
			return doc.FileID, doc.FileName, doc.FileSize, true
		}
	}
	return "", "", 0, false
}

func (b *Bot) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolving file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("downloading file: status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

func (b *Bot) reply(msg *tgbotapi.Message, text string) {
	out := tgbotapi.NewMessage(msg.Chat.ID, text)
	out.ReplyToMessageID = msg.MessageID
	if _, err := b.api.Send(out); err != nil {
		slog.Error("Failed to send telegram message", "chat_id", msg.Chat.ID, "error", err)
	}
}

// splitMessage breaks text into chunks of at most limit runes, preferring
// to break after a newline.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return append(chunks, string(runes))
}
