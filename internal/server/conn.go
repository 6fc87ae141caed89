package server

import (
	"io"
	"net"
	"time"
)

const (
	lingerTimeout = 500 * time.Millisecond // 応答後に残りのリクエストを読み捨てる最大時間
	maxDrainBytes = 256 << 10
)

// lingerListener は Accept した接続を lingerConn で包む
// netutil.LimitListener より内側に置くことで、枠の解放前に読み捨てが終わる
type lingerListener struct {
	net.Listener
}

func (l lingerListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &lingerConn{Conn: conn}, nil
}

// lingerConn は応答を書き込んだ接続を閉じる前に、送信側だけを閉じて未読データを読み捨てる。
// 未読データを残したまま閉じるとRSTが送られ、クライアントが応答を受け取れないことがある。
type lingerConn struct {
	net.Conn
	wrote bool
}

func (c *lingerConn) Write(b []byte) (int, error) {
	c.wrote = true
	return c.Conn.Write(b)
}

func (c *lingerConn) Close() error {
	if c.wrote {
		if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok && cw.CloseWrite() == nil {
			_ = c.Conn.SetReadDeadline(time.Now().Add(lingerTimeout))
			_, _ = io.Copy(io.Discard, io.LimitReader(c.Conn, maxDrainBytes))
		}
	}
	return c.Conn.Close()
}
