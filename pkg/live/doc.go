// Package live implements the voice assistant session orchestrator.
//
// A Session owns one live conversation at a time: it streams microphone
// audio up to the Gemini Live endpoint, plays synthesized audio back,
// folds streamed transcriptions into conversation messages, and answers
// model-initiated tool calls (image generation, grounded search, video
// search) on the same connection.
//
// # Architecture
//
// The package provides a handful of cooperating components:
//
//   - Session: the orchestrator; lifecycle, state machine, message list
//   - capture loop: fixed-size PCM frames from the microphone to the wire
//   - player: gapless scheduling of inbound audio with barge-in support
//   - transcript: per-turn input/output accumulators flushed into messages
//   - tool dispatcher: sequential resolution of function-call batches
//
// # Data Flow
//
//	Mic → 20ms PCM frames → transport (dropped while muted)
//
//	transport events → run loop → transcript accumulators → messages
//	                            → player → Speaker
//	                            → tool dispatcher → Toolset → tool responses
//
// # State Machine
//
//	IDLE → CONNECTING → LISTENING ⇄ SPEAKING
//	                        ⇅
//	                     THINKING
//
// Any state reaches IDLE through the single teardown path; failures pass
// through ERROR on the way down and leave Err() set.
//
// # Usage
//
//	session, err := live.New(live.SessionConfig{APIKey: key}, live.Dependencies{
//	    Tools:       live.Toolset{Images: img, Search: search, Videos: videos},
//	    OpenMic:     openMic,
//	    OpenSpeaker: openSpeaker,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := session.Start(ctx, live.StartOptions{Topic: "general", Language: "en-US"}); err != nil {
//	    log.Fatal(err)
//	}
//	defer session.Close()
//
//	for event := range session.Events() {
//	    switch e := event.(type) {
//	    case *live.TranscriptDeltaEvent:
//	        fmt.Printf("%s: %s\n", e.Speaker, e.Text)
//	    case *live.MessageAddedEvent:
//	        render(e.Message)
//	    case *live.ClosedEvent:
//	        return
//	    }
//	}
package live
