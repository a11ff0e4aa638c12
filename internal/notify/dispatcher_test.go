package notify

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/reedfamily/gamewatch/internal/source"
)

type fakeChat struct {
	sent     []string // channel:content
	edited   []string // channel:message:content
	presence []string

	sendErr error
	editErr error
	nextID  string
}

func (f *fakeChat) SendMessage(channelID, content string) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, channelID+":"+content)
	if f.nextID == "" {
		return "m1", nil
	}
	return f.nextID, nil
}

func (f *fakeChat) EditMessage(channelID, messageID, content string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.edited = append(f.edited, channelID+":"+messageID+":"+content)
	return nil
}

func (f *fakeChat) SetPresence(status string) error {
	f.presence = append(f.presence, status)
	return nil
}

func TestPostBanChannelUnset(t *testing.T) {
	t.Parallel()

	d := NewDispatcher(&fakeChat{})
	err := d.PostBan(source.BanRecord{ID: "b1"}, "")
	if !errors.Is(err, ErrChannelUnset) {
		t.Errorf("PostBan() error = %v, want ErrChannelUnset", err)
	}
}

func TestPostBanContent(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	d := NewDispatcher(chat)

	exp := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)
	if err := d.PostBan(source.BanRecord{ID: "b1", Player: "Griefer", Reason: "cheating", Expires: exp}, "c9"); err != nil {
		t.Fatalf("PostBan() error = %v", err)
	}
	if len(chat.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(chat.sent))
	}
	for _, want := range []string{"c9:", "Griefer", "cheating", "2026-09-01 12:30 UTC"} {
		if !strings.Contains(chat.sent[0], want) {
			t.Errorf("ban message missing %q: %s", want, chat.sent[0])
		}
	}

	chat.sent = nil
	if err := d.PostBan(source.BanRecord{ID: "b2", Player: "X", Reason: "y"}, "c9"); err != nil {
		t.Fatalf("PostBan() error = %v", err)
	}
	if !strings.Contains(chat.sent[0], "Permanent") {
		t.Errorf("permanent ban message missing Permanent: %s", chat.sent[0])
	}
}

func TestPostOrEditStatusEditsPrevious(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	d := NewDispatcher(chat)

	id, err := d.PostOrEditStatus(&source.PerformanceSample{FPS: 60, Players: 12}, "c1", "m7")
	if err != nil {
		t.Fatalf("PostOrEditStatus() error = %v", err)
	}
	if id != "m7" {
		t.Errorf("returned id = %q, want m7 (edit in place)", id)
	}
	if len(chat.edited) != 1 || len(chat.sent) != 0 {
		t.Errorf("edited=%d sent=%d, want 1/0", len(chat.edited), len(chat.sent))
	}
	if !strings.Contains(chat.edited[0], "Players: **12**") {
		t.Errorf("status content missing player count: %s", chat.edited[0])
	}
}

func TestPostOrEditStatusFallsBackWhenMessageGone(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{editErr: ErrMessageNotFound, nextID: "m8"}
	d := NewDispatcher(chat)

	id, err := d.PostOrEditStatus(&source.PerformanceSample{FPS: 60}, "c1", "m7")
	if err != nil {
		t.Fatalf("PostOrEditStatus() error = %v", err)
	}
	if id != "m8" {
		t.Errorf("returned id = %q, want m8 (fresh post)", id)
	}
}

func TestPostOrEditStatusNoPrevious(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{nextID: "m9"}
	d := NewDispatcher(chat)

	id, err := d.PostOrEditStatus(&source.PerformanceSample{FPS: 60}, "c1", "")
	if err != nil {
		t.Fatalf("PostOrEditStatus() error = %v", err)
	}
	if id != "m9" || len(chat.sent) != 1 {
		t.Errorf("id=%q sent=%d, want m9/1", id, len(chat.sent))
	}
}

func TestPostOrEditStatusTransportError(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{editErr: errors.New("boom")}
	d := NewDispatcher(chat)

	if _, err := d.PostOrEditStatus(&source.PerformanceSample{}, "c1", "m7"); err == nil {
		t.Error("PostOrEditStatus() error = nil, want transport failure")
	}
}

func TestUpdatePresence(t *testing.T) {
	t.Parallel()

	chat := &fakeChat{}
	d := NewDispatcher(chat)
	if err := d.UpdatePresence(17, 128); err != nil {
		t.Fatalf("UpdatePresence() error = %v", err)
	}
	if len(chat.presence) != 1 || chat.presence[0] != "17/128 Playing" {
		t.Errorf("presence = %v, want [17/128 Playing]", chat.presence)
	}
}
