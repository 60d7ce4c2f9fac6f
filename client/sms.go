package client

import (
	"context"
	"encoding/xml"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/titpetric/hilink-cli/model"
)

const (
	pathSMSList   = "/api/sms/sms-list"
	pathSMSCount  = "/api/sms/sms-count"
	pathSMSSend   = "/api/sms/send-sms"
	pathSMSRead   = "/api/sms/set-read"
	pathSMSDelete = "/api/sms/delete-sms"
)

const (
	defaultReadCount = 20
	smsDateLayout    = "2006-01-02 15:04:05"
)

// Requester is the authenticated request primitive the SMS API needs.
type Requester interface {
	Request(ctx context.Context, path string, body any) (Tree, error)
}

// SMSClient lists, sends, marks and deletes messages stored on the device.
// Failures are logged and reported as an empty list or false.
type SMSClient struct {
	requester Requester
	log       zerolog.Logger
	now       func() time.Time
}

// NewSMSClient creates an SMS API on top of r.
func NewSMSClient(r Requester, log *zerolog.Logger) *SMSClient {
	l := zerolog.Nop()
	if log != nil {
		l = *log
	}
	return &SMSClient{
		requester: r,
		log:       l,
		now:       time.Now,
	}
}

type smsListRequest struct {
	XMLName         xml.Name `xml:"request"`
	PageIndex       int      `xml:"PageIndex"`
	ReadCount       int      `xml:"ReadCount"`
	BoxType         int      `xml:"BoxType"`
	SortType        int      `xml:"SortType"`
	Ascending       int      `xml:"Ascending"`
	UnreadPreferred int      `xml:"UnreadPreferred"`
}

type smsSendRequest struct {
	XMLName  xml.Name `xml:"request"`
	Index    int      `xml:"Index"`
	Phones   []string `xml:"Phones>Phone"`
	Sca      string   `xml:"Sca"`
	Content  string   `xml:"Content"`
	Length   int      `xml:"Length"`
	Reserved int      `xml:"Reserved"`
	Date     string   `xml:"Date"`
}

// List returns one page of messages from box, in device order.
func (s *SMSClient) List(ctx context.Context, box model.BoxType, readCount, pageIndex int) []model.SMSMessage {
	if readCount <= 0 {
		readCount = defaultReadCount
	}
	if pageIndex <= 0 {
		pageIndex = 1
	}

	messages, err := s.list(ctx, box, readCount, pageIndex)
	if err != nil {
		s.log.Warn().Err(err).Int("box", int(box)).Int("page", pageIndex).Msg("failed to list SMS")
		return []model.SMSMessage{}
	}
	return messages
}

func (s *SMSClient) list(ctx context.Context, box model.BoxType, readCount, pageIndex int) ([]model.SMSMessage, error) {
	resp, err := s.requester.Request(ctx, pathSMSList, smsListRequest{
		PageIndex:       pageIndex,
		ReadCount:       readCount,
		BoxType:         int(box),
		SortType:        0,
		Ascending:       0,
		UnreadPreferred: 1,
	})
	if err != nil {
		return nil, err
	}
	if code, ok := resp.ErrorCode(); ok {
		return nil, fmt.Errorf("device error %s", code)
	}

	count, err := resp.Int("response.Count")
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return []model.SMSMessage{}, nil
	}

	const messagePath = "response.Messages.Message"
	raw, ok := resp.Path(messagePath)
	if !ok {
		return nil, &MalformedResponseError{Path: messagePath}
	}

	// A single message is not wrapped in a list by the XML decoder.
	var items []any
	if count == 1 {
		items = []any{raw}
	} else {
		list, ok := raw.([]any)
		if !ok {
			return nil, &MalformedResponseError{Path: messagePath, Err: fmt.Errorf("expected a list for count %d", count)}
		}
		items = list
	}

	messages := make([]model.SMSMessage, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, &MalformedResponseError{Path: messagePath, Err: fmt.Errorf("unexpected element %T", item)}
		}
		msg, err := toSMSMessage(Tree(m))
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// toSMSMessage converts a raw <Message> element to model.SMSMessage
func toSMSMessage(raw Tree) (model.SMSMessage, error) {
	index, ok := raw.String("Index")
	if !ok {
		return model.SMSMessage{}, &MalformedResponseError{Path: "Message.Index"}
	}
	state, err := raw.Int("Smstat")
	if err != nil {
		return model.SMSMessage{}, err
	}

	from, _ := raw.String("Phone")
	content, _ := raw.String("Content")
	date, _ := raw.String("Date")

	return model.SMSMessage{
		Index:   index,
		From:    from,
		Content: content,
		State:   model.SMSState(state),
		Unread:  model.SMSState(state) == model.SMSStateUnread,
		Date:    date,
	}, nil
}

// Count returns the device's message counters.
func (s *SMSClient) Count(ctx context.Context) (model.SMSCount, bool) {
	resp, err := s.requester.Request(ctx, pathSMSCount, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to count SMS")
		return model.SMSCount{}, false
	}
	if _, err := resp.Int("response.LocalUnread"); err != nil {
		s.log.Warn().Err(err).Msg("failed to count SMS")
		return model.SMSCount{}, false
	}

	field := func(name string) int {
		n, _ := resp.Int("response." + name)
		return n
	}
	return model.SMSCount{
		LocalUnread: field("LocalUnread"),
		LocalInbox:  field("LocalInbox"),
		LocalOutbox: field("LocalOutbox"),
		LocalDraft:  field("LocalDraft"),
		LocalMax:    field("LocalMax"),
		SimUnread:   field("SimUnread"),
		SimInbox:    field("SimInbox"),
		SimOutbox:   field("SimOutbox"),
		SimDraft:    field("SimDraft"),
		SimMax:      field("SimMax"),
	}, true
}

// Send sends content to one or more recipients.
func (s *SMSClient) Send(ctx context.Context, content string, to ...string) bool {
	if len(to) == 0 {
		s.log.Warn().Msg("send SMS: no recipients")
		return false
	}
	return s.acknowledge(ctx, "send", pathSMSSend, smsSendRequest{
		Index:    -1,
		Phones:   to,
		Sca:      "",
		Content:  content,
		Length:   utf8.RuneCountInString(content),
		Reserved: 1,
		Date:     s.now().Format(smsDateLayout),
	})
}

// MarkAsRead marks the message at index as read.
func (s *SMSClient) MarkAsRead(ctx context.Context, index string) bool {
	return s.acknowledge(ctx, "mark read", pathSMSRead, indexRequest(index))
}

// Delete removes the message at index.
func (s *SMSClient) Delete(ctx context.Context, index string) bool {
	return s.acknowledge(ctx, "delete", pathSMSDelete, indexRequest(index))
}

func indexRequest(index string) Tree {
	return Tree{"request": map[string]any{"Index": index}}
}

// acknowledge posts body and reports whether the device answered OK.
func (s *SMSClient) acknowledge(ctx context.Context, op, path string, body any) bool {
	resp, err := s.requester.Request(ctx, path, body)
	if err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("SMS request failed")
		return false
	}
	if !IsOK(resp) {
		code, _ := resp.ErrorCode()
		s.log.Warn().Str("op", op).Str("code", code).Msg("SMS request rejected by device")
		return false
	}
	return true
}
