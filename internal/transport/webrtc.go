// Package transport wraps pion/webrtc for the Robot Agent's realtime
// media and data path, grounded directly on the reference robot agent's
// transport.WebRTC type.
package transport

import (
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
)

var ErrNoPeerConnection = errors.New("transport: no active peer connection")

type ICEConfig struct {
	STUNServers []string
	TURNServers []string
}

func (c ICEConfig) toWebRTCConfig() webrtc.Configuration {
	var servers []webrtc.ICEServer
	if len(c.STUNServers) > 0 {
		servers = append(servers, webrtc.ICEServer{URLs: c.STUNServers})
	}
	for _, turn := range c.TURNServers {
		servers = append(servers, webrtc.ICEServer{URLs: []string{turn}})
	}
	return webrtc.Configuration{ICEServers: servers}
}

// WebRTC manages a single peer connection and its control datachannel.
// The Robot Agent is always the answerer; Gateway-relayed offers arrive
// via signaling, never originate here.
type WebRTC struct {
	mu     sync.Mutex
	config webrtc.Configuration
	pc     *webrtc.PeerConnection
	dc     *webrtc.DataChannel

	onICECandidate func(candidate []byte)
	onData         func(data []byte)
	onState        func(state webrtc.PeerConnectionState)
}

func NewWebRTC(cfg ICEConfig) *WebRTC {
	return &WebRTC{config: cfg.toWebRTCConfig()}
}

func (w *WebRTC) SetICECallback(f func(candidate []byte))               { w.onICECandidate = f }
func (w *WebRTC) SetDataHandler(f func(data []byte))                    { w.onData = f }
func (w *WebRTC) SetStateCallback(f func(state webrtc.PeerConnectionState)) { w.onState = f }

func (w *WebRTC) CreatePeerConnection() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	pc, err := webrtc.NewPeerConnection(w.config)
	if err != nil {
		return err
	}
	w.pc = pc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil || w.onICECandidate == nil {
			return
		}
		init := c.ToJSON()
		b, err := candidateToJSON(init)
		if err == nil {
			w.onICECandidate(b)
		}
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if w.onState != nil {
			w.onState(s)
		}
	})

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		w.mu.Lock()
		w.dc = dc
		w.mu.Unlock()
		dc.OnMessage(func(msg webrtc.DataChannelMessage) {
			if w.onData != nil {
				w.onData(msg.Data)
			}
		})
	})

	return nil
}

// HandleOffer applies a remote SDP offer and returns the local answer,
// the only SDP direction the Robot Agent ever produces.
func (w *WebRTC) HandleOffer(sdp []byte) ([]byte, error) {
	w.mu.Lock()
	pc := w.pc
	w.mu.Unlock()
	if pc == nil {
		return nil, ErrNoPeerConnection
	}

	offer, err := sdpFromJSON(sdp, webrtc.SDPTypeOffer)
	if err != nil {
		return nil, err
	}
	if err := pc.SetRemoteDescription(offer); err != nil {
		return nil, err
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return nil, err
	}
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(answer); err != nil {
		return nil, err
	}
	<-gatherComplete

	return sdpToJSON(*pc.LocalDescription())
}

func (w *WebRTC) AddICECandidate(candidate []byte) error {
	w.mu.Lock()
	pc := w.pc
	w.mu.Unlock()
	if pc == nil {
		return ErrNoPeerConnection
	}
	init, err := candidateFromJSON(candidate)
	if err != nil {
		return err
	}
	return pc.AddICECandidate(init)
}

func (w *WebRTC) SendData(data []byte) error {
	w.mu.Lock()
	dc := w.dc
	w.mu.Unlock()
	if dc == nil {
		return ErrNoPeerConnection
	}
	return dc.Send(data)
}

func (w *WebRTC) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pc == nil {
		return nil
	}
	err := w.pc.Close()
	w.pc = nil
	w.dc = nil
	return err
}
