package gateway

import (
	"testing"
	"time"

	"github.com/arcwing/gatecore/internal/model"
)

type fakeVoiceSink struct {
	ready []string
}

func (f *fakeVoiceSink) SessionReady(guildID, channelID, sessionID, token, endpoint string) {
	f.ready = append(f.ready, guildID+":"+channelID+":"+sessionID+":"+token+":"+endpoint)
}

func TestVoiceBridgeHandleIsLazyAndStable(t *testing.T) {
	bridge := NewVoiceBridge(nil)
	cc := newCommandChannel()
	defer cc.close()

	h1 := bridge.handle("guild-1", cc)
	h2 := bridge.handle("guild-1", cc)
	if h1 != h2 {
		t.Error("expected the same VoiceHandle on repeated lookups for the same guild")
	}

	h3 := bridge.handle("guild-2", cc)
	if h1 == h3 {
		t.Error("expected distinct handles for distinct guilds")
	}
}

func TestVoiceBridgeDropForgetsState(t *testing.T) {
	bridge := NewVoiceBridge(nil)
	cc := newCommandChannel()
	defer cc.close()

	first := bridge.handle("guild-1", cc)
	first.updateState(model.VoiceStateUpdate{GuildID: "guild-1", SessionID: "sess-1"})

	bridge.drop("guild-1")

	second := bridge.handle("guild-1", cc)
	if second == first {
		t.Fatal("expected drop to discard the old handle so a fresh one is created")
	}
	if second.sessionID != "" {
		t.Error("expected the freshly created handle to carry no prior state")
	}
}

func TestVoiceHandleJoinSendsVoiceStateUpdate(t *testing.T) {
	bridge := NewVoiceBridge(nil)
	cc := newCommandChannel()
	defer cc.close()

	h := bridge.handle("guild-1", cc)
	h.Join("channel-1", true, false)

	cmd := recvCommand(t, cc)
	msg, ok := cmd.(sendMessageCmd)
	if !ok {
		t.Fatalf("command = %T, want sendMessageCmd", cmd)
	}
	frame, ok := msg.payload.(voiceStateFrame)
	if !ok {
		t.Fatalf("payload = %T, want voiceStateFrame", msg.payload)
	}
	if frame.Op != OpVoiceStateUpdate {
		t.Errorf("Op = %d, want %d", frame.Op, OpVoiceStateUpdate)
	}
	if frame.Data.ChannelID == nil || *frame.Data.ChannelID != "channel-1" {
		t.Errorf("ChannelID = %v, want channel-1", frame.Data.ChannelID)
	}
	if !frame.Data.SelfMute {
		t.Error("expected SelfMute to be true")
	}
}

func TestVoiceHandleLeaveSendsNilChannel(t *testing.T) {
	bridge := NewVoiceBridge(nil)
	cc := newCommandChannel()
	defer cc.close()

	h := bridge.handle("guild-1", cc)
	h.Leave()

	cmd := recvCommand(t, cc)
	frame := cmd.(sendMessageCmd).payload.(voiceStateFrame)
	if frame.Data.ChannelID != nil {
		t.Errorf("ChannelID = %v, want nil", frame.Data.ChannelID)
	}
}

func TestVoiceHandleNotifiesOnceBothHalvesArrive(t *testing.T) {
	sink := &fakeVoiceSink{}
	bridge := NewVoiceBridge(sink)
	cc := newCommandChannel()
	defer cc.close()

	h := bridge.handle("guild-1", cc)
	channelID := "channel-1"
	h.updateState(model.VoiceStateUpdate{
		GuildID:   "guild-1",
		ChannelID: &channelID,
		UserID:    "user-1",
		SessionID: "sess-1",
	})
	if len(sink.ready) != 0 {
		t.Fatal("should not notify after only the state half has arrived")
	}

	h.updateServer(model.VoiceServerUpdate{
		GuildID:  "guild-1",
		Token:    "tok",
		Endpoint: "region.example.com",
	})
	if len(sink.ready) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(sink.ready))
	}
	if sink.ready[0] != "guild-1:channel-1:sess-1:tok:region.example.com" {
		t.Errorf("unexpected notification payload: %s", sink.ready[0])
	}
}

func recvCommand(t *testing.T, cc *commandChannel) command {
	t.Helper()
	select {
	case cmd := <-cc.out:
		return cmd
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a command")
		return nil
	}
}
