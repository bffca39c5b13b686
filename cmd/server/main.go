package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"apkscope/internal/analysis"
	"apkscope/internal/server"
)

// Config holds all environment configuration
type Config struct {
	// Server
	Port string

	// Static-analysis service (MobSF-compatible)
	MobSFURL    string
	MobSFAPIKey string

	// LLM endpoint (OpenAI-compatible, Groq by default)
	GroqAPIKey  string
	GroqBaseURL string
	GroqModel   string

	// SuSi sensitive-API dataset
	SusiSourcesPath string
	SusiSinksPath   string

	// Artifacts
	OutputDir string
	UploadDir string
}

func loadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Port:            getEnv("PORT", "8080"),
		MobSFURL:        getEnv("MOBSF_URL", "http://localhost:8000"),
		MobSFAPIKey:     getEnv("MOBSF_API_KEY", ""),
		GroqAPIKey:      getEnv("GROQ_API_KEY", ""),
		GroqBaseURL:     getEnv("GROQ_BASE_URL", analysis.DefaultBaseURL),
		GroqModel:       getEnv("GROQ_MODEL", analysis.DefaultModel),
		SusiSourcesPath: getEnv("SUSI_SOURCES_PATH", "datasets/Ouput_CatSources_v0_9.txt"),
		SusiSinksPath:   getEnv("SUSI_SINKS_PATH", "datasets/Ouput_CatSinks_v0_9.txt"),
		OutputDir:       getEnv("OUTPUT_DIR", "./output_files"),
		UploadDir:       getEnv("UPLOAD_DIR", ""),
	}

	if config.UploadDir == "" {
		config.UploadDir = filepath.Join(os.TempDir(), "apkscope-uploads")
	}

	// Validate required fields
	if config.MobSFAPIKey == "" {
		return nil, fmt.Errorf("MOBSF_API_KEY is required")
	}
	if config.GroqAPIKey == "" {
		return nil, fmt.Errorf("GROQ_API_KEY is required")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// WebSocket upgrader
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The UI is served from the same process
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Client represents a connected WebSocket client
type Client struct {
	conn    *websocket.Conn
	config  *Config
	uploads *server.UploadStore
	send    chan server.Message
	// Track if analysis is running (one at a time)
	analysisCtx    context.Context
	analysisCancel context.CancelFunc
}

func newClient(conn *websocket.Conn, config *Config, uploads *server.UploadStore) *Client {
	return &Client{
		conn:    conn,
		config:  config,
		uploads: uploads,
		send:    make(chan server.Message, 256),
	}
}

func (c *Client) SendMessage(msg server.Message) {
	select {
	case c.send <- msg:
	default:
		// Channel full, drop message
		log.Println("Warning: message channel full, dropping message")
	}
}

func (c *Client) SendLog(message, level string) {
	c.SendMessage(server.NewLogMessage(message, level))
}

func (c *Client) SendProgress(percent int, stage, message string) {
	c.SendMessage(server.NewProgressMessage(percent, stage, message))
}

func (c *Client) SendError(message string, err error) {
	c.SendMessage(server.NewErrorMessage(message, err))
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("Error writing message: %v", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		// Cancel any running analysis
		if c.analysisCancel != nil {
			c.analysisCancel()
		}
		c.conn.Close()
	}()

	for {
		var msg server.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}

		switch msg.Type {
		case server.TypeAnalyze:
			c.handleAnalyze(msg)
		case server.TypePing:
			// Respond with pong
			c.SendMessage(server.Message{Type: "pong"})
		default:
			c.SendError(fmt.Sprintf("Unknown message type: %s", msg.Type), nil)
		}
	}
}

func (c *Client) handleAnalyze(msg server.Message) {
	// Check if already analyzing
	if c.analysisCtx != nil && c.analysisCtx.Err() == nil {
		c.SendError("Analysis already in progress", nil)
		return
	}

	// Parse payload
	payload, err := server.ParseAnalyzePayload(msg)
	if err != nil {
		c.SendError("Failed to parse analyze request", err)
		return
	}

	apkPath, fileName, err := c.uploads.Get(payload.UploadID)
	if err != nil {
		c.SendError("Upload not found", err)
		return
	}

	// Create cancellable context for this analysis
	c.analysisCtx, c.analysisCancel = context.WithCancel(context.Background())
	defer func() {
		c.analysisCtx = nil
		c.analysisCancel = nil
	}()

	// Run analysis pipeline
	pipeline := server.NewPipeline(server.Config{
		MobSFURL:        c.config.MobSFURL,
		MobSFAPIKey:     c.config.MobSFAPIKey,
		GroqAPIKey:      c.config.GroqAPIKey,
		GroqBaseURL:     c.config.GroqBaseURL,
		GroqModel:       c.config.GroqModel,
		SusiSourcesPath: c.config.SusiSourcesPath,
		SusiSinksPath:   c.config.SusiSinksPath,
		OutputDir:       c.config.OutputDir,
	}, c)

	_, err = pipeline.Run(c.analysisCtx, apkPath, fileName)
	c.uploads.Remove(payload.UploadID)

	if err != nil {
		if c.analysisCtx.Err() == context.Canceled {
			c.SendLog("Analysis cancelled", "warning")
		} else {
			c.SendError("Analysis failed", err)
		}
		return
	}

	c.SendMessage(server.NewCompleteMessage(true, "Analysis complete"))
}

func serveWs(config *Config, uploads *server.UploadStore, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	client := newClient(conn, config, uploads)

	// Start goroutines for reading and writing
	go client.writePump()
	go client.readPump()
}

// maxUploadSize bounds APK uploads (MobSF's own default limit)
const maxUploadSize = 256 << 20

func handleUpload(uploads *server.UploadStore, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid upload: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	id, size, err := uploads.Save(header.Filename, file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("Staged upload %s (%s, %d bytes)", id, header.Filename, size)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"upload_id": id,
		"file_name": header.Filename,
		"size":      size,
	})
}

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	uploads, err := server.NewUploadStore(config.UploadDir, server.DefaultUploadRetention)
	if err != nil {
		log.Fatalf("Failed to create upload store: %v", err)
	}

	// Form UI
	http.HandleFunc("/", server.IndexHandler)

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// APK staging endpoint
	http.HandleFunc("/api/upload", func(w http.ResponseWriter, r *http.Request) {
		handleUpload(uploads, w, r)
	})

	// WebSocket endpoint
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWs(config, uploads, w, r)
	})

	port := config.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Server starting on port %s", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
