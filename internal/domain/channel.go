package domain

import "fmt"

// Channel is one reminder medium.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelText  Channel = "text"
	ChannelVoice Channel = "voice"
)

// Channels returns every medium in a stable order.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelText, ChannelVoice}
}

func ParseChannel(s string) (Channel, error) {
	switch Channel(s) {
	case ChannelEmail, ChannelText, ChannelVoice:
		return Channel(s), nil
	}
	return "", fmt.Errorf("unknown channel %q", s)
}

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelText, ChannelVoice:
		return true
	}
	return false
}

func (c Channel) String() string { return string(c) }
