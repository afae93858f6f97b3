package gateway

import (
	"context"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// DiscordGateway runs the assistant over Discord. Each channel is its
// own session.
type DiscordGateway struct {
	Session *discordgo.Session
	Engine  Responder
}

func NewDiscordGateway(token string, engine Responder) (*DiscordGateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages

	return &DiscordGateway{
		Session: session,
		Engine:  engine,
	}, nil
}

func (dg *DiscordGateway) Start() error {
	dg.Session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author.ID == s.State.User.ID || m.Content == "" {
			return
		}

		log.Printf("[%s] %s", m.Author.Username, m.Content)

		sessionID := "discord-" + m.ChannelID
		response := dg.Engine.Turn(context.Background(), sessionID, m.Content)

		// Discord caps messages at 2000 characters.
		for len(response) > 0 {
			chunk := response
			if len(chunk) > 1900 {
				chunk = chunk[:1900]
			}
			response = response[len(chunk):]
			if _, err := s.ChannelMessageSend(m.ChannelID, chunk); err != nil {
				log.Printf("Error sending reply: %v", err)
				return
			}
		}
	})

	return dg.Session.Open()
}

func (dg *DiscordGateway) Send(chatID string, text string) error {
	channelID := strings.TrimPrefix(chatID, "discord-")
	_, err := dg.Session.ChannelMessageSend(channelID, text)
	return err
}

func (dg *DiscordGateway) Stop() error {
	return dg.Session.Close()
}
