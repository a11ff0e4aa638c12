package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/reedfamily/gamewatch/internal/notify"
)

// Sender adapts a discordgo session to the dispatcher's chat surface.
type Sender struct {
	s *discordgo.Session
}

func NewSender(s *discordgo.Session) *Sender {
	return &Sender{s: s}
}

func (s *Sender) SendMessage(channelID, content string) (string, error) {
	msg, err := s.s.ChannelMessageSend(channelID, content)
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (s *Sender) EditMessage(channelID, messageID, content string) error {
	_, err := s.s.ChannelMessageEdit(channelID, messageID, content)
	if isUnknownMessage(err) {
		return notify.ErrMessageNotFound
	}
	return err
}

func (s *Sender) SetPresence(status string) error {
	return s.s.UpdateGameStatus(0, status)
}

func isUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Message != nil {
		return restErr.Message.Code == discordgo.ErrCodeUnknownMessage
	}
	return false
}
