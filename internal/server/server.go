package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/netutil"

	"webserver/internal/config"
	"webserver/internal/request"
	"webserver/internal/resolver"
	"webserver/internal/response"
)

// ErrServerClosed は Shutdown 後に Serve が返すエラー
var ErrServerClosed = errors.New("サーバーは停止しています")

// Server は静的ファイルを配信するTCPサーバーを管理する構造体
type Server struct {
	config   *config.Config
	resolver *resolver.Resolver
	builder  *response.Builder

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	conns    sync.WaitGroup
}

// New は新しいServerインスタンスを作成する
func New(cfg *config.Config) *Server {
	r := resolver.New(cfg.Site.Root, cfg.Site.IndexFile)

	return &Server{
		config:   cfg,
		resolver: r,
		builder:  response.NewBuilder(r),
	}
}

// Start はサーバーを起動する
// コンテキストのキャンセルかシグナルを受けるとシャットダウンする
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ServerAddress())
	if err != nil {
		return fmt.Errorf("サーバーの起動に失敗: %w", err)
	}

	// シャットダウン用のチャンネル
	shutdownCh := make(chan error, 1)

	// サーバーを別ゴルーチンで起動
	go func() {
		log.Printf("サーバーを起動しています: %s (ドキュメントルート: %s)", ln.Addr(), s.resolver.Root())
		if err := s.Serve(ln); err != nil && !errors.Is(err, ErrServerClosed) {
			shutdownCh <- err
		}
	}()

	// シグナルハンドリング
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// コンテキストかシグナルを待つ
	select {
	case <-ctx.Done():
		log.Println("コンテキストがキャンセルされました")
	case sig := <-sigCh:
		log.Printf("シグナルを受信しました: %v", sig)
	case err := <-shutdownCh:
		return err
	}

	// グレースフルシャットダウン
	return s.Shutdown()
}

// Serve は ln で接続を受け付け、接続ごとにゴルーチンで処理する
func (s *Server) Serve(ln net.Listener) error {
	ln = lingerListener{ln}
	if n := s.config.Server.MaxConnections; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return fmt.Errorf("リスナーが閉じられました: %w", err)
			}
			log.Printf("accept に失敗しました: %v", err)
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			conn.Close()
			return ErrServerClosed
		}
		s.conns.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.conns.Done()
			s.handleConn(conn)
		}()
	}
}

// Addr はリッスン中のアドレスを返す（未起動なら nil）
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown はリスナーを閉じ、処理中の接続の完了を待つ
func (s *Server) Shutdown() error {
	log.Println("サーバーをシャットダウンしています...")

	s.mu.Lock()
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("リスナーのクローズに失敗: %w", err)
		}
	}

	// 5秒のタイムアウトを設定
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("サーバーのシャットダウンに失敗: %w", ctx.Err())
	}

	log.Println("サーバーが正常にシャットダウンされました")
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// handleConn は1つの接続で1つのリクエストを処理して閉じる
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	id := uuid.New().String()

	if t := s.config.Server.ReadTimeout; t > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t))
	}

	res, line := s.process(id, conn)
	if res == nil {
		return
	}

	if t := s.config.Server.WriteTimeout; t > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t))
	}
	if _, err := res.WriteTo(conn); err != nil {
		log.Printf("[%s] レスポンスの書き込みに失敗しました: %v", id, err)
		return
	}

	log.Printf("[%s] %s %s -> %d", id, conn.RemoteAddr(), line, res.Status)
}

// process は読み込みから応答の組み立てまでを行う
// 応答すべきでない場合（切断、タイムアウト）は nil を返す
func (s *Server) process(id string, conn net.Conn) (*response.Response, string) {
	raw, err := request.ReadRequestLine(conn, s.config.Request.ChunkSize, s.config.Request.MaxLineBytes)
	if err != nil {
		var netErr net.Error
		switch {
		case errors.Is(err, request.ErrRequestTooLarge):
			log.Printf("[%s] %v", id, err)
			return response.FromError(err), "-"
		case errors.As(err, &netErr) && netErr.Timeout():
			log.Printf("[%s] リクエスト待ちがタイムアウトしました: %s", id, conn.RemoteAddr())
		case errors.Is(err, io.EOF):
			// リクエストを送らずに切断された
		default:
			log.Printf("[%s] リクエストの読み込みに失敗しました: %v", id, err)
		}
		return nil, ""
	}

	req, err := request.Parse(raw)
	if err != nil {
		log.Printf("[%s] %v", id, err)
		return response.FromError(err), "-"
	}

	target := s.resolver.Resolve(req)
	if target.Escaped {
		log.Printf("[%s] ドキュメントルート外へのアクセスを拒否しました: %s", id, req.URI)
	}

	res, err := s.builder.Build(target, conn.LocalAddr())
	if err != nil {
		log.Printf("[%s] %v", id, err)
		return response.FromError(err), req.String()
	}
	return res, req.String()
}
