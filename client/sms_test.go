package client

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/titpetric/hilink-cli/model"
)

const threeMessages = `<response><Count>3</Count><Messages>
<Message><Smstat>0</Smstat><Index>40003</Index><Phone>+4915112345678</Phone><Content>third</Content><Date>2024-05-01 10:00:03</Date></Message>
<Message><Smstat>1</Smstat><Index>40002</Index><Phone>0170</Phone><Content>second</Content><Date>2024-05-01 10:00:02</Date></Message>
<Message><Smstat>1</Smstat><Index>40001</Index><Phone>Vodafone</Phone><Content>first</Content><Date>2024-05-01 10:00:01</Date></Message>
</Messages></response>`

func TestSMSListSingleMessage(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSList, `<response><Count>1</Count><Messages><Message>
<Smstat>0</Smstat><Index>40001</Index><Phone>+4915112345678</Phone><Content>hello</Content><Date>2024-05-01 10:00:00</Date>
</Message></Messages></response>`)

	messages := NewSMSClient(stub, nil).List(context.Background(), model.BoxInbox, 20, 1)

	require.Len(t, messages, 1)
	assert.Equal(t, model.SMSMessage{
		Index:   "40001",
		From:    "+4915112345678",
		Content: "hello",
		State:   model.SMSStateUnread,
		Unread:  true,
		Date:    "2024-05-01 10:00:00",
	}, messages[0])
}

func TestSMSListKeepsDeviceOrder(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSList, threeMessages)

	messages := NewSMSClient(stub, nil).List(context.Background(), model.BoxInbox, 20, 1)

	require.Len(t, messages, 3)
	assert.Equal(t, "40003", messages[0].Index)
	assert.Equal(t, "40002", messages[1].Index)
	assert.Equal(t, "40001", messages[2].Index)
	assert.True(t, messages[0].Unread)
	assert.False(t, messages[1].Unread)
	assert.Equal(t, "0170", messages[1].From)
}

func TestSMSListEmpty(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSList, `<response><Count>0</Count><Messages></Messages></response>`)

	messages := NewSMSClient(stub, nil).List(context.Background(), model.BoxInbox, 20, 1)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestSMSListMalformed(t *testing.T) {
	tests := []struct {
		name string
		xml  string
	}{
		{"count mismatch", `<response><Count>2</Count><Messages><Message><Smstat>0</Smstat><Index>1</Index></Message></Messages></response>`},
		{"missing count", `<response><Messages></Messages></response>`},
		{"missing messages", `<response><Count>1</Count></response>`},
		{"missing index", `<response><Count>1</Count><Messages><Message><Smstat>0</Smstat></Message></Messages></response>`},
		{"error envelope", `<error><code>125003</code><message></message></error>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStubRequester()
			stub.on(pathSMSList, tt.xml)

			messages := NewSMSClient(stub, nil).List(context.Background(), model.BoxInbox, 20, 1)
			assert.NotNil(t, messages)
			assert.Empty(t, messages)
		})
	}
}

func TestSMSListTransportError(t *testing.T) {
	stub := newStubRequester()
	stub.fail(pathSMSList, &TransportError{Op: "POST", URL: pathSMSList, Err: errors.New("connection refused")})

	messages := NewSMSClient(stub, nil).List(context.Background(), model.BoxSent, 20, 1)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestSMSListRequestEnvelope(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSList, `<response><Count>0</Count></response>`)
	sms := NewSMSClient(stub, nil)

	sms.List(context.Background(), model.BoxSent, 0, 0)
	assert.Equal(t, smsListRequest{
		PageIndex:       1,
		ReadCount:       20,
		BoxType:         int(model.BoxSent),
		UnreadPreferred: 1,
	}, stub.last(pathSMSList))

	sms.List(context.Background(), model.BoxDraft, 5, 3)
	assert.Equal(t, smsListRequest{
		PageIndex:       3,
		ReadCount:       5,
		BoxType:         int(model.BoxDraft),
		UnreadPreferred: 1,
	}, stub.last(pathSMSList))
}

func TestSMSMarkAsRead(t *testing.T) {
	tests := []struct {
		name     string
		answer   string
		err      error
		expected bool
	}{
		{"ok", `<response>OK</response>`, nil, true},
		{"capitalized", `<Response>OK</Response>`, nil, true},
		{"failure", `<response>FAIL</response>`, nil, false},
		{"device error", `<error><code>125002</code></error>`, nil, false},
		{"transport", "", errors.New("timeout"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newStubRequester()
			if tt.err != nil {
				stub.fail(pathSMSRead, tt.err)
			} else {
				stub.on(pathSMSRead, tt.answer)
			}

			ok := NewSMSClient(stub, nil).MarkAsRead(context.Background(), "40001")
			assert.Equal(t, tt.expected, ok)
			assert.Equal(t, indexRequest("40001"), stub.last(pathSMSRead))
		})
	}
}

func TestSMSDelete(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSDelete, `<response>OK</response>`)
	sms := NewSMSClient(stub, nil)

	assert.True(t, sms.Delete(context.Background(), "40002"))
	assert.Equal(t, indexRequest("40002"), stub.last(pathSMSDelete))

	stub.on(pathSMSDelete, `<error><code>125003</code></error>`)
	assert.False(t, sms.Delete(context.Background(), "40002"))
}

func TestSMSSend(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSSend, `<response>OK</response>`)

	sms := NewSMSClient(stub, nil)
	sms.now = func() time.Time {
		return time.Date(2024, 5, 1, 18, 4, 5, 0, time.Local)
	}

	require.True(t, sms.Send(context.Background(), "héllo", "+111", "+222"))
	assert.Equal(t, smsSendRequest{
		Index:    -1,
		Phones:   []string{"+111", "+222"},
		Content:  "héllo",
		Length:   5,
		Reserved: 1,
		Date:     "2024-05-01 18:04:05",
	}, stub.last(pathSMSSend))
}

func TestSMSSendWithoutRecipients(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSSend, `<response>OK</response>`)

	assert.False(t, NewSMSClient(stub, nil).Send(context.Background(), "hello"))
	assert.Nil(t, stub.last(pathSMSSend))
}

func TestSMSSendRejected(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSSend, `<error><code>113018</code></error>`)

	assert.False(t, NewSMSClient(stub, nil).Send(context.Background(), "hello", "+111"))
}

func TestSMSCount(t *testing.T) {
	stub := newStubRequester()
	stub.on(pathSMSCount, `<response>
<LocalUnread>2</LocalUnread><LocalInbox>10</LocalInbox><LocalOutbox>3</LocalOutbox><LocalDraft>1</LocalDraft>
<LocalDeleted>0</LocalDeleted><SimUnread>0</SimUnread><SimInbox>4</SimInbox><SimOutbox>0</SimOutbox>
<SimDraft>0</SimDraft><LocalMax>500</LocalMax><SimMax>50</SimMax><SimUsed>4</SimUsed><NewMsg>0</NewMsg>
</response>`)

	count, ok := NewSMSClient(stub, nil).Count(context.Background())
	require.True(t, ok)
	assert.Equal(t, model.SMSCount{
		LocalUnread: 2,
		LocalInbox:  10,
		LocalOutbox: 3,
		LocalDraft:  1,
		LocalMax:    500,
		SimInbox:    4,
		SimMax:      50,
	}, count)

	stub.on(pathSMSCount, `<error><code>100003</code></error>`)
	_, ok = NewSMSClient(stub, nil).Count(context.Background())
	assert.False(t, ok)
}

func TestSMSOverClient(t *testing.T) {
	device, srv := newFakeDevice(t)
	device.handle("/api/sms/set-read", xmlHandler(`<response>OK</response>`, map[string]string{headerToken: "tok-next"}))

	c := newTestClient(t, srv.URL, func(o *Options) {
		o.Session = "SessionID=abc"
		o.Token = "tok-1"
	})

	require.True(t, c.SMS().MarkAsRead(context.Background(), "7"))
	assert.Contains(t, device.lastBody("/api/sms/set-read"), "<Index>7</Index>")
	assert.Equal(t, "tok-1", device.lastHeader("/api/sms/set-read").Get(headerToken))
	assert.Equal(t, "tok-next", c.ExportAuth().Token)
}

func TestSMSOverClientTimeout(t *testing.T) {
	device, srv := newFakeDevice(t)
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	device.handle("/api/sms/set-read", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})

	c := newTestClient(t, srv.URL, func(o *Options) {
		o.HTTPClient = &http.Client{Timeout: 50 * time.Millisecond}
	})

	assert.False(t, c.SMS().MarkAsRead(context.Background(), "7"))
}
