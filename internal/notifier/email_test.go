package notifier

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEmailConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		config  EmailConfig
		wantErr bool
	}{
		{"missing host", EmailConfig{Port: 587, From: "a@example.com"}, true},
		{"missing port", EmailConfig{Host: "smtp.example.com", From: "a@example.com"}, true},
		{"missing from", EmailConfig{Host: "smtp.example.com", Port: 587}, true},
		{"valid", EmailConfig{Host: "smtp.example.com", Port: 587, From: "a@example.com"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTemplatesRender(t *testing.T) {
	tmpl, err := LoadTemplates()
	if err != nil {
		t.Fatalf("LoadTemplates() error = %v", err)
	}

	data := &ResetData{
		AppName:   "CollabHub",
		Name:      "Ada <script>",
		Link:      "http://localhost:3000/reset-password/abc",
		ExpiresIn: "1 hour",
	}

	html, err := tmpl.RenderHTML(data)
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(html, data.Link) {
		t.Error("HTML body missing reset link")
	}
	if strings.Contains(html, "<script>") {
		t.Error("HTML body should escape the user name")
	}

	plain, err := tmpl.RenderPlain(data)
	if err != nil {
		t.Fatalf("RenderPlain() error = %v", err)
	}
	if !strings.Contains(plain, data.Link) || !strings.Contains(plain, "1 hour") {
		t.Errorf("plain body missing link or expiry: %s", plain)
	}
}

func TestBuildMIMEMessage(t *testing.T) {
	mailer := &SMTPMailer{
		config: EmailConfig{From: "CollabHub <no-reply@example.com>"},
	}

	msg := string(mailer.buildMIMEMessage("ada@example.com", "Test Subject", "Plain body", "<p>HTML body</p>"))

	for _, want := range []string{
		"From: CollabHub <no-reply@example.com>",
		"To: ada@example.com",
		"Subject: Test Subject",
		"MIME-Version: 1.0",
		"multipart/alternative",
		"Plain body",
		"<p>HTML body</p>",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestExtractEmail(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"no-reply@example.com", "no-reply@example.com"},
		{"CollabHub <no-reply@example.com>", "no-reply@example.com"},
		{"<bare@example.com>", "bare@example.com"},
		{"broken > <", "broken > <"},
	}

	for _, tt := range tests {
		if got := extractEmail(tt.input); got != tt.want {
			t.Errorf("extractEmail(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{time.Hour, "1 hour"},
		{2 * time.Hour, "2 hours"},
		{30 * time.Minute, "30 minutes"},
		{time.Minute, "1 minute"},
		{90 * time.Minute, "90 minutes"},
	}
	for _, tt := range tests {
		if got := humanDuration(tt.in); got != tt.want {
			t.Errorf("humanDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestLogMailer(t *testing.T) {
	if err := (LogMailer{}).SendPasswordReset(context.Background(), "a@example.com", "A", "http://x/y"); err != nil {
		t.Errorf("LogMailer error = %v", err)
	}
}

// mockSMTPServer creates a mock SMTP server for testing.
type mockSMTPServer struct {
	listener net.Listener
	messages [][]byte
	mu       sync.Mutex
	wg       sync.WaitGroup
}

func newMockSMTPServer(t *testing.T) *mockSMTPServer {
	var lc net.ListenConfig
	listener, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}

	server := &mockSMTPServer{
		listener: listener,
		messages: make([][]byte, 0),
	}

	server.wg.Add(1)
	go server.serve(t)

	return server
}

func (s *mockSMTPServer) serve(t *testing.T) {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn, t)
	}
}

func (s *mockSMTPServer) handleConnection(conn net.Conn, t *testing.T) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Send greeting
	writer.WriteString("220 localhost SMTP Mock Server\r\n")
	writer.Flush()

	var dataMode bool
	var messageData []byte

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		line = strings.TrimSpace(line)

		if dataMode {
			if line == "." {
				dataMode = false
				s.mu.Lock()
				s.messages = append(s.messages, messageData)
				s.mu.Unlock()
				messageData = nil
				writer.WriteString("250 OK\r\n")
				writer.Flush()
				continue
			}
			messageData = append(messageData, []byte(line+"\n")...)
			continue
		}

		upperLine := strings.ToUpper(line)

		switch {
		case strings.HasPrefix(upperLine, "EHLO"), strings.HasPrefix(upperLine, "HELO"):
			writer.WriteString("250-localhost\r\n")
			writer.WriteString("250 OK\r\n")
			writer.Flush()
		case strings.HasPrefix(upperLine, "MAIL FROM"):
			writer.WriteString("250 OK\r\n")
			writer.Flush()
		case strings.HasPrefix(upperLine, "RCPT TO"):
			writer.WriteString("250 OK\r\n")
			writer.Flush()
		case upperLine == "DATA":
			writer.WriteString("354 Start mail input\r\n")
			writer.Flush()
			dataMode = true
		case upperLine == "QUIT":
			writer.WriteString("221 Bye\r\n")
			writer.Flush()
			return
		default:
			writer.WriteString("500 Unknown command\r\n")
			writer.Flush()
		}
	}
}

func (s *mockSMTPServer) addr() string {
	return s.listener.Addr().String()
}

func (s *mockSMTPServer) close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *mockSMTPServer) getMessages() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([][]byte, len(s.messages))
	copy(result, s.messages)
	return result
}

func TestSMTPMailerSendWithMockSMTP(t *testing.T) {
	server := newMockSMTPServer(t)
	defer server.close()

	host, portStr, _ := net.SplitHostPort(server.addr())
	port, _ := strconv.Atoi(portStr)

	mailer, err := NewSMTPMailer(EmailConfig{
		Host: host,
		Port: port,
		From: "CollabHub <no-reply@example.com>",
	})
	if err != nil {
		t.Fatalf("failed to create mailer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	link := "http://localhost:3000/reset-password/tok123"
	if err := mailer.SendPasswordReset(ctx, "ada@example.com", "Ada", link); err != nil {
		t.Fatalf("SendPasswordReset failed: %v", err)
	}

	// Wait a bit for message to be processed
	time.Sleep(100 * time.Millisecond)

	messages := server.getMessages()
	if len(messages) == 0 {
		t.Fatal("no messages received by mock server")
	}

	msgStr := string(messages[0])
	if !strings.Contains(msgStr, link) {
		t.Error("message doesn't contain reset link")
	}
	if !strings.Contains(msgStr, "To: ada@example.com") {
		t.Error("message doesn't address the recipient")
	}
}

func TestSMTPMailerConnectionRefused(t *testing.T) {
	var lc net.ListenConfig
	l, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := l.Addr().(*net.TCPAddr)
	l.Close()

	mailer, err := NewSMTPMailer(EmailConfig{Host: "127.0.0.1", Port: addr.Port, From: "a@example.com", Timeout: time.Second})
	if err != nil {
		t.Fatalf("failed to create mailer: %v", err)
	}
	if err := mailer.SendPasswordReset(context.Background(), "b@example.com", "B", "http://x"); err == nil {
		t.Error("expected error when SMTP server is unreachable")
	}
}
