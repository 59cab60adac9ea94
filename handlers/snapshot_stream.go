package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ferreirogomes/greenfund/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SnapshotSource publica snapshots da sessão.
type SnapshotSource interface {
	Load() *models.SessionSnapshot
	Subscribe() (<-chan *models.SessionSnapshot, func())
}

// SnapshotStream envia cada snapshot publicado aos clientes websocket. Um cliente novo recebe
// primeiro o snapshot atual, se houver.
type SnapshotStream struct {
	Source    SnapshotSource
	Presenter *Presenter

	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewSnapshotStream cria um stream sobre source.
func NewSnapshotStream(source SnapshotSource, p *Presenter, logger *zap.Logger) *SnapshotStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotStream{
		Source:    source,
		Presenter: p,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("ws"),
	}
}

// ServeHTTP faz o upgrade da conexão e envia snapshots até o cliente desconectar.
// GET /ws
func (s *SnapshotStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Falha no upgrade do websocket", zap.Error(err))
		return
	}
	updates, cancel := s.Source.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go s.readPump(conn, done)
	s.writePump(r, conn, updates, done)
}

// readPump descarta mensagens do cliente e renova o prazo de leitura a cada pong.
func (s *SnapshotStream) readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("Falha na leitura do websocket", zap.Error(err))
			}
			return
		}
	}
}

func (s *SnapshotStream) writePump(r *http.Request, conn *websocket.Conn, updates <-chan *models.SessionSnapshot, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	if snap := s.Source.Load(); snap != nil {
		if err := s.send(r, conn, snap); err != nil {
			return
		}
	}

	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.send(r, conn, snap); err != nil {
				s.logger.Debug("Falha na escrita do websocket", zap.Error(err))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *SnapshotStream) send(r *http.Request, conn *websocket.Conn, snap *models.SessionSnapshot) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(s.Presenter.session(r.Context(), snap))
}
