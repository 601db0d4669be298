package model

// ConnectionStatus mirrors the backend's view of the WhatsApp session.
type ConnectionStatus struct {
	Connected     bool
	MessagesCount int
	ContactsCount int
	BotEnabled    bool
}

// DefaultStatus is what the dashboard shows before the first status response.
func DefaultStatus() ConnectionStatus {
	return ConnectionStatus{BotEnabled: true}
}

// Media kinds as stored in the config document.
const (
	MediaInline = "base64"
	MediaRemote = "url"
)

// MediaRef describes one attachment sent with the first-contact message.
type MediaRef struct {
	Type     string `json:"type"`
	MimeType string `json:"mimetype"`
	Data     string `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
	Caption  string `json:"caption,omitempty"`
	Preview  string `json:"preview,omitempty"`
}

// FirstContact is the greeting sent on a contact's first inbound message.
type FirstContact struct {
	Enabled bool       `json:"enabled"`
	Message string     `json:"message"`
	Media   []MediaRef `json:"media"`
}

// BotConfig is the config document edited on the dashboard and written wholesale on save.
type BotConfig struct {
	BotEnabled   bool         `json:"botEnabled"`
	BotPrompt    string       `json:"botPrompt"`
	FirstContact FirstContact `json:"firstContact"`
}

// Defaults shown until the config document says otherwise.
const (
	DefaultPrompt       = "Você é um assistente virtual. Seja sempre cordial e prestativo."
	DefaultFirstContact = "Olá! 👋 Bem-vindo! Como posso ajudar você hoje?"
)

// DefaultConfig returns the editable config before any snapshot arrives.
func DefaultConfig() BotConfig {
	return BotConfig{
		BotEnabled: true,
		BotPrompt:  DefaultPrompt,
		FirstContact: FirstContact{
			Enabled: true,
			Message: DefaultFirstContact,
		},
	}
}

// Rule is a keyword-triggered canned response.
type Rule struct {
	ID       string `json:"id"`
	Keyword  string `json:"keyword"`
	Response string `json:"response"`
	Active   bool   `json:"active"`
}

// Contact is a read-only projection of someone who messaged the bot.
type Contact struct {
	Number         string `json:"number"`
	Name           string `json:"name"`
	FirstContactAt string `json:"firstContact"`
	LastMessageAt  string `json:"lastMessage"`
	MessageCount   int    `json:"messageCount"`
}

// Message is one message exchanged with a contact.
type Message struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	FromName  string `json:"fromName"`
	Body      string `json:"body"`
	Timestamp int64  `json:"timestamp"`
	Date      string `json:"date"`
	Type      string `json:"type"`
	IsGroup   bool   `json:"isGroup"`
}

// HelpRequest is a contact asking to talk to a human.
type HelpRequest struct {
	ID            string `json:"id"`
	ContactName   string `json:"contactName"`
	ContactNumber string `json:"contactNumber"`
	RequestedAt   string `json:"requestedAt"`
	Reason        string `json:"reason,omitempty"`
	Resolved      bool   `json:"resolved"`
}
