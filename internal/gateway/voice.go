package gateway

import (
	"sync"

	"github.com/arcwing/gatecore/internal/model"
)

// VoiceBridge tracks one VoiceHandle per guild, created lazily on first
// access. It is attached to a Connection via AttachVoice; a
// Connection with no bridge attached simply never routes voice dispatches.
type VoiceBridge struct {
	mu      sync.Mutex
	handles map[string]*VoiceHandle
	sink    VoiceSink
}

// VoiceSink is the collaborator a real voice transport implements. It is
// deliberately minimal: the core's job ends at routing VOICE_STATE_UPDATE
// and VOICE_SERVER_UPDATE to the right guild, not at speaking UDP/RTP
// itself.
type VoiceSink interface {
	// SessionReady is called once both a voice state and a matching voice
	// server update have been observed for a guild, with everything needed
	// to open the voice websocket.
	SessionReady(guildID, channelID, sessionID, token, endpoint string)
}

// NewVoiceBridge constructs a bridge that hands every guild's events to
// sink. sink may be nil, in which case handles simply accumulate state
// without notifying anything.
func NewVoiceBridge(sink VoiceSink) *VoiceBridge {
	return &VoiceBridge{
		handles: make(map[string]*VoiceHandle),
		sink:    sink,
	}
}

// handle returns the VoiceHandle for guildID, creating one if this is the
// first time the guild has been seen.
func (b *VoiceBridge) handle(guildID string, commands *commandChannel) *VoiceHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[guildID]
	if !ok {
		h = &VoiceHandle{
			guildID:  guildID,
			sink:     b.sink,
			commands: commands,
		}
		b.handles[guildID] = h
	}
	return h
}

// drop forgets the voice handle for a guild, discarding any state it held;
// it does not retain mute/deaf settings for a later rejoin.
func (b *VoiceBridge) drop(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handles, guildID)
}

// VoiceHandle holds the voice-state fragments observed for one guild until
// both halves (state + server) have arrived, at which point it notifies the
// sink. It also lets callers request joining/leaving a voice channel.
type VoiceHandle struct {
	mu sync.Mutex

	guildID  string
	sink     VoiceSink
	commands *commandChannel

	userID    string
	sessionID string
	channelID *string

	token    string
	endpoint string
}

// Join sends an op-4 VOICE STATE UPDATE requesting the bot join channelID
// in this handle's guild.
func (h *VoiceHandle) Join(channelID string, selfMute, selfDeaf bool) {
	h.sendState(&channelID, selfMute, selfDeaf)
}

// Leave sends an op-4 VOICE STATE UPDATE requesting the bot leave voice in
// this handle's guild.
func (h *VoiceHandle) Leave() {
	h.sendState(nil, false, false)
}

func (h *VoiceHandle) sendState(channelID *string, selfMute, selfDeaf bool) {
	frame := voiceStateFrame{
		Op: OpVoiceStateUpdate,
		Data: voiceStateData{
			GuildID:   h.guildID,
			ChannelID: channelID,
			SelfMute:  selfMute,
			SelfDeaf:  selfDeaf,
		},
	}
	h.commands.send(sendMessageCmd{payload: frame})
}

// updateState records a VOICE_STATE_UPDATE dispatch for this guild,
// notifying the sink once a server update has already arrived.
func (h *VoiceHandle) updateState(ev model.VoiceStateUpdate) {
	h.mu.Lock()
	h.userID = ev.UserID
	h.sessionID = ev.SessionID
	h.channelID = ev.ChannelID
	ready := h.channelID != nil && h.token != "" && h.endpoint != ""
	h.mu.Unlock()

	if ready {
		h.notify()
	}
}

// updateServer records a VOICE_SERVER_UPDATE dispatch for this guild,
// notifying the sink once a state update has already arrived.
func (h *VoiceHandle) updateServer(ev model.VoiceServerUpdate) {
	h.mu.Lock()
	h.token = ev.Token
	h.endpoint = ev.Endpoint
	ready := h.channelID != nil && h.sessionID != ""
	h.mu.Unlock()

	if ready {
		h.notify()
	}
}

func (h *VoiceHandle) notify() {
	if h.sink == nil {
		return
	}
	h.mu.Lock()
	guildID, channelID, sessionID, token, endpoint := h.guildID, "", h.sessionID, h.token, h.endpoint
	if h.channelID != nil {
		channelID = *h.channelID
	}
	h.mu.Unlock()
	h.sink.SessionReady(guildID, channelID, sessionID, token, endpoint)
}
