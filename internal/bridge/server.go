package bridge

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/kapu/untranslate-go/internal/constants"
	"github.com/kapu/untranslate-go/internal/dom"
	"github.com/kapu/untranslate-go/internal/realm"
	"github.com/kapu/untranslate-go/internal/session"
)

// Server accepts page clients and runs one session per connection. The
// client owns the real DOM; the session owns the authoritative copy that
// restoration works on. Text patches flow back as set-text messages.
type Server struct {
	factory  *session.Factory
	manager  *session.Manager
	logger   *zap.Logger
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func NewServer(addr string, factory *session.Factory, manager *session.Manager, logger *zap.Logger) *Server {
	s := &Server{
		factory: factory,
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: constants.BridgeConfig.HandshakeTimeout,
			// Clients connect from extension origins; there is no
			// same-origin relationship to enforce here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/bridge", s.handleBridge)
	s.httpSrv = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		s.logger.Info("Bridge listening", zap.String("addr", s.httpSrv.Addr))
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Bridge server failed", zap.Error(err))
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleBridge(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Bridge upgrade failed", zap.Error(err))
		return
	}

	conn := newConn(ws)
	defer conn.Close()
	s.serve(r.Context(), conn)
}

// serve runs one connection: hello, snapshot, then the mutation stream.
func (s *Server) serve(ctx context.Context, conn *Conn) {
	hello, err := s.expectHello(conn)
	if err != nil {
		s.logger.Warn("Bridge handshake failed", zap.Error(err))
		return
	}

	doc, err := s.expectSnapshot(conn)
	if err != nil {
		s.logger.Warn("Bridge handshake failed", zap.Error(err))
		return
	}

	id := uuid.NewString()
	sess := s.factory.New(id, hello.URL, doc)
	s.manager.Add(sess)
	defer s.manager.Stop(context.Background(), id)

	unsub := sess.Realm().Subscribe(s.mirror(sess, conn))
	defer unsub()

	if err := conn.WriteEnvelope(TypeSession, SessionData{ID: id}); err != nil {
		s.logger.Warn("Bridge session ack failed", zap.Error(err))
		return
	}

	// Start can block on the panel wait budget; the mutation stream has to
	// keep flowing meanwhile, it is what makes the container appear.
	go sess.Start(ctx)

	s.logger.Info("Bridge client connected",
		zap.String("session", id),
		zap.String("url", hello.URL))

	for {
		env, err := conn.ReadEnvelope()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("Bridge client dropped", zap.String("session", id), zap.Error(err))
			} else {
				s.logger.Info("Bridge client disconnected", zap.String("session", id))
			}
			return
		}
		s.dispatch(ctx, sess, env)
	}
}

func (s *Server) expectHello(conn *Conn) (*HelloData, error) {
	env, err := conn.ReadEnvelope()
	if err != nil {
		return nil, err
	}
	if env.Type != TypeHello {
		return nil, errUnexpectedType(TypeHello, env.Type)
	}

	var hello HelloData
	if err := json.Unmarshal(env.Data, &hello); err != nil {
		return nil, err
	}
	return &hello, nil
}

func (s *Server) expectSnapshot(conn *Conn) (*html.Node, error) {
	env, err := conn.ReadEnvelope()
	if err != nil {
		return nil, err
	}
	if env.Type != TypeSnapshot {
		return nil, errUnexpectedType(TypeSnapshot, env.Type)
	}

	var snap SnapshotData
	if err := json.Unmarshal(env.Data, &snap); err != nil {
		return nil, err
	}
	return dom.Parse(snap.HTML)
}

func (s *Server) dispatch(ctx context.Context, sess *session.PageSession, env *Envelope) {
	switch env.Type {
	case TypeMutation:
		var m MutationData
		if err := json.Unmarshal(env.Data, &m); err != nil {
			s.logger.Warn("Bad mutation payload", zap.Error(err))
			return
		}
		s.applyMutation(sess, m)

	case TypeNavigate:
		var nav NavigateData
		if err := json.Unmarshal(env.Data, &nav); err != nil {
			s.logger.Warn("Bad navigate payload", zap.Error(err))
			return
		}
		// Setup after navigation can block on the panel wait budget.
		go sess.Navigate(ctx, nav.URL)

	case TypeSnapshot:
		var snap SnapshotData
		if err := json.Unmarshal(env.Data, &snap); err != nil {
			s.logger.Warn("Bad snapshot payload", zap.Error(err))
			return
		}
		go func() {
			if err := sess.ApplySnapshot(ctx, snap.HTML); err != nil {
				s.logger.Warn("Snapshot rejected", zap.Error(err))
			}
		}()

	case TypeHello:
		s.logger.Warn("Duplicate hello ignored", zap.String("session", sess.ID()))

	default:
		s.logger.Debug("Unknown message type", zap.String("type", env.Type))
	}
}

// applyMutation replays one client DOM change into the realm. Adds go
// through the recording primitives so the watchers see them; removals go
// through the swappable primitive so the guard can veto them.
func (s *Server) applyMutation(sess *session.PageSession, m MutationData) {
	r := sess.Realm()

	switch m.Op {
	case OpAdd:
		nodes, err := dom.ParseFragment(m.HTML)
		if err != nil {
			s.logger.Warn("Bad mutation fragment", zap.Error(err))
			return
		}
		r.Do(func() {
			parent := dom.NodeAt(r.Doc(), m.ParentPath)
			if parent == nil {
				s.logger.Debug("Mutation parent not found", zap.Ints("path", m.ParentPath))
				return
			}
			for i, n := range nodes {
				r.InsertChildAt(parent, m.Index+i, n)
			}
		})

	case OpRemove:
		r.Do(func() {
			doc := r.Doc()
			parent := dom.NodeAt(doc, m.ParentPath)
			child := dom.NodeAt(doc, m.Path)
			if parent == nil || child == nil {
				s.logger.Debug("Mutation target not found", zap.Ints("path", m.Path))
				return
			}
			r.RemoveChild(parent, child)
		})

	case OpText:
		r.Do(func() {
			n := dom.NodeAt(r.Doc(), m.Path)
			if n == nil {
				s.logger.Debug("Mutation target not found", zap.Ints("path", m.Path))
				return
			}
			// Host text writes go in silently; recording them would echo
			// them straight back to the client.
			dom.SetText(n, m.Text)
		})

	default:
		s.logger.Debug("Unknown mutation op", zap.String("op", m.Op))
	}
}

// mirror converts realm mutation batches into outbound messages: text
// patches become set-text, script installs become inject-script.
func (s *Server) mirror(sess *session.PageSession, conn *Conn) func(realm.Batch) {
	return func(b realm.Batch) {
		var texts []SetTextData
		var scripts []InjectScriptData

		r := sess.Realm()
		r.Do(func() {
			doc := r.Doc()
			for _, rec := range b.Records {
				switch rec.Op {
				case realm.OpText:
					path, ok := dom.PathTo(doc, rec.Node)
					if !ok {
						continue
					}
					texts = append(texts, SetTextData{Path: path, Text: dom.Text(rec.Node)})

				case realm.OpAdd:
					if rec.Node.Type == html.ElementNode && rec.Node.Data == "script" {
						attrs := make(map[string]string, len(rec.Node.Attr))
						for _, a := range rec.Node.Attr {
							attrs[a.Key] = a.Val
						}
						scripts = append(scripts, InjectScriptData{Attrs: attrs})
					}
				}
			}
		})

		for _, sc := range scripts {
			if err := conn.WriteEnvelope(TypeInjectScript, sc); err != nil {
				s.logger.Debug("Mirror write failed", zap.Error(err))
				return
			}
		}
		for _, st := range texts {
			if err := conn.WriteEnvelope(TypeSetText, st); err != nil {
				s.logger.Debug("Mirror write failed", zap.Error(err))
				return
			}
		}
	}
}

type unexpectedTypeError struct {
	want, got string
}

func errUnexpectedType(want, got string) error {
	return &unexpectedTypeError{want: want, got: got}
}

func (e *unexpectedTypeError) Error() string {
	return "expected " + e.want + " message, got " + e.got
}
