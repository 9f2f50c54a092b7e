package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/habitus-ai/habitus-voice/pkg/audio"
	"github.com/habitus-ai/habitus-voice/pkg/providers/chat"
	"github.com/habitus-ai/habitus-voice/pkg/providers/live"
	"github.com/habitus-ai/habitus-voice/pkg/providers/stt"
	"github.com/habitus-ai/habitus-voice/pkg/providers/tts"
	"github.com/habitus-ai/habitus-voice/pkg/voice"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Note: No .env file found, using system environment variables")
	}

	openaiKey := os.Getenv("OPENAI_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	habitusKey := os.Getenv("HABITUS_API_KEY")

	mode := os.Getenv("AGENT_MODE")
	if mode == "" {
		mode = "turn"
	}

	cfg := voice.DefaultConfig()
	if v := os.Getenv("AGENT_VOICE"); v != "" {
		cfg.Voice = v
	}
	if instructions := os.Getenv("AGENT_INSTRUCTIONS"); instructions != "" {
		cfg.Instructions = instructions
	}

	capture := audio.NewMalgoCapture()
	if !capture.Supported() {
		log.Fatal("Error: no audio capture backend available")
	}
	defer capture.Close()
	capture.SetChunkInterval(cfg.ChunkInterval)

	rec := audio.NewRecorder(capture, cfg.Format)
	player := audio.NewPlayer(audio.NewOtoOutput(), cfg.Format)
	defer player.Close()

	mic := audio.NewGuard("microphone")
	speaker := audio.NewGuard("speaker")

	if mode == "live" {
		host := os.Getenv("HABITUS_LIVE_HOST")
		if host == "" {
			log.Fatal("Error: HABITUS_LIVE_HOST must be set for live mode")
		}
		if habitusKey == "" {
			log.Fatal("Error: HABITUS_API_KEY must be set for live mode")
		}
		runLive(rec, player, live.NewDialer(habitusKey, host), cfg, mic, speaker)
		return
	}

	// STT Selection
	sttName := os.Getenv("STT_PROVIDER")
	if sttName == "" {
		sttName = "openai"
	}
	var transcriber voice.Transcriber
	switch sttName {
	case "deepgram":
		if deepgramKey == "" {
			log.Fatal("Error: DEEPGRAM_API_KEY must be set for deepgram STT")
		}
		transcriber = stt.NewDeepgramSTT(deepgramKey)
	case "groq":
		if groqKey == "" {
			log.Fatal("Error: GROQ_API_KEY must be set for groq STT")
		}
		transcriber = stt.NewGroqSTT(groqKey, os.Getenv("GROQ_STT_MODEL"))
	case "openai":
		fallthrough
	default:
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai STT")
		}
		transcriber = stt.NewOpenAISTT(openaiKey, "whisper-1")
	}

	// Chat Selection
	chatName := os.Getenv("CHAT_PROVIDER")
	if chatName == "" {
		chatName = "coach"
	}
	var chatter voice.ChatStreamer
	switch chatName {
	case "openai":
		if openaiKey == "" {
			log.Fatal("Error: OPENAI_API_KEY must be set for openai chat")
		}
		chatter = chat.NewOpenAIChat(openaiKey, os.Getenv("OPENAI_CHAT_MODEL"), cfg.Instructions)
	case "coach":
		fallthrough
	default:
		chatURL := os.Getenv("HABITUS_CHAT_URL")
		if chatURL == "" || habitusKey == "" {
			log.Fatal("Error: HABITUS_CHAT_URL and HABITUS_API_KEY must be set for coach chat")
		}
		chatter = chat.NewCoachChat(habitusKey, chatURL)
	}

	// TTS Selection
	ttsName := os.Getenv("TTS_PROVIDER")
	if ttsName == "" {
		ttsName = "http"
	}
	var synth voice.Synthesizer
	switch ttsName {
	case "stream":
		host := os.Getenv("TTS_STREAM_HOST")
		if host == "" || habitusKey == "" {
			log.Fatal("Error: TTS_STREAM_HOST and HABITUS_API_KEY must be set for stream TTS")
		}
		synth = tts.NewStreamTTS(habitusKey, host)
	case "http":
		fallthrough
	default:
		ttsURL := os.Getenv("HABITUS_TTS_URL")
		if ttsURL == "" || habitusKey == "" {
			log.Fatal("Error: HABITUS_TTS_URL and HABITUS_API_KEY must be set for http TTS")
		}
		synth = tts.NewHTTPTTS(habitusKey, ttsURL)
	}

	fmt.Printf("Configured: STT=%s | Chat=%s | TTS=%s | Voice=%s\n",
		transcriber.Name(), chatter.Name(), synth.Name(), cfg.Voice)
	runTurn(rec, player, transcriber, chatter, synth, cfg, mic, speaker)
}

func runTurn(rec *audio.Recorder, player *audio.Player, transcriber voice.Transcriber, chatter voice.ChatStreamer, synth voice.Synthesizer, cfg voice.Config, mic, speaker *audio.Guard) {
	controller := voice.NewTurnController(rec, player, transcriber, chatter, synth, cfg)
	controller.SetGuards(mic, speaker)
	defer controller.Close()

	go printEvents(controller.Events())
	go meterLoop(rec)

	fmt.Println("Push-to-talk: press Enter to start recording, Enter again to send.")
	fmt.Println("Type 'cancel' to abort the turn, 'quit' to exit.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "quit", "exit":
			return
		case "cancel":
			controller.CancelConversation()
			fmt.Println("Cancelled.")
		default:
			if controller.State() == voice.StateListening {
				if err := controller.StopListening(); err != nil {
					fmt.Printf("[ERROR] %v\n", err)
				}
			} else {
				if err := controller.StartListening(context.Background()); err != nil {
					fmt.Printf("[ERROR] %v\n", err)
				}
			}
		}
	}
}

func runLive(rec *audio.Recorder, player *audio.Player, dialer voice.LiveDialer, cfg voice.Config, mic, speaker *audio.Guard) {
	controller := voice.NewLiveController(rec, player, dialer, cfg)
	controller.SetGuards(mic, speaker)
	defer controller.Close()

	go printEvents(controller.Events())
	go meterLoop(rec)

	fmt.Println("Connecting...")
	if err := controller.Connect(context.Background()); err != nil {
		log.Fatalf("Error: live connect failed: %v", err)
	}
	if err := controller.StartListening(context.Background()); err != nil {
		log.Fatalf("Error: microphone failed: %v", err)
	}
	fmt.Println("Live session started. Speak freely; press Ctrl+C to exit.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	fmt.Printf("\nShutting down...\n")
}

func printEvents(events <-chan voice.Event) {
	for event := range events {
		switch event.Type {
		case voice.StateChanged:
			fmt.Printf("\r\033[K[STATE] %v\n", event.Data)
		case voice.TranscriptUpdated:
			fmt.Printf("\r\033[K[YOU] %s\n", event.Data)
		case voice.ResponseFinal:
			fmt.Printf("\r\033[K[ASSISTANT] %s\n", event.Data)
		case voice.ConversationAdopted:
			fmt.Printf("\r\033[K[CONVERSATION] %s\n", event.Data)
		case voice.ErrorEvent:
			fmt.Printf("\r\033[K[ERROR] %v\n", event.Data)
		}
	}
}

// meterLoop draws a mic energy bar while a recording session is open.
func meterLoop(rec *audio.Recorder) {
	for {
		if rec.Recording() {
			level := rec.Level()
			dots := int(level * 500)
			if dots > 40 {
				dots = 40
			}
			fmt.Printf("\r[MIC ENERGY: %-40s] RMS: %.5f", strings.Repeat("|", dots), level)
		}
		time.Sleep(100 * time.Millisecond)
	}
}
