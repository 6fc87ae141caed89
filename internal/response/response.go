// Package response は解決結果からHTTP/1.1のレスポンスを組み立て、
// ワイヤ形式に書き出す。
package response

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"webserver/internal/request"
	"webserver/internal/resolver"
)

const (
	htmlContentType    = "text/html; charset=utf-8"
	defaultContentType = "application/octet-stream"
)

// contentTypes は拡張子ごとの Content-Type
var contentTypes = map[string]string{
	".css":  "text/css; charset=utf-8",
	".html": htmlContentType,
}

// Header はレスポンスヘッダー1行
type Header struct {
	Name  string
	Value string
}

// Response は書き出し前のレスポンス
type Response struct {
	Status  int
	Headers []Header // 書き出す順序を保持する
	Body    []byte
}

// Builder は解決結果からレスポンスを組み立てる
type Builder struct {
	resolver *resolver.Resolver
}

// NewBuilder は新しいBuilderを作成する
func NewBuilder(r *resolver.Resolver) *Builder {
	return &Builder{resolver: r}
}

// Build はステータスに応じたレスポンスを組み立てる
// local は Location ヘッダーのホストとポートに使う接続のローカルアドレス
func (b *Builder) Build(target *resolver.Target, local net.Addr) (*Response, error) {
	switch target.Status {
	case http.StatusOK:
		body, err := readFile(target.Path)
		if err != nil {
			return nil, fmt.Errorf("ファイルの読み込みに失敗 (%s): %w", target.Path, err)
		}
		return newResponse(http.StatusOK, ContentType(target.Path), body), nil

	case http.StatusMovedPermanently:
		rel, ok := b.resolver.Rel(target.Path)
		if !ok {
			return nil, fmt.Errorf("リダイレクト先がドキュメントルートの外です: %s", target.Path)
		}
		return newResponse(http.StatusMovedPermanently, htmlContentType, errorBody(http.StatusMovedPermanently),
			Header{Name: "Location", Value: location(local, rel)}), nil

	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return Error(target.Status), nil

	default:
		return nil, fmt.Errorf("未対応のステータス: %d", target.Status)
	}
}

// Error は汎用エラーページのレスポンスを返す
func Error(status int) *Response {
	return newResponse(status, htmlContentType, errorBody(status))
}

// FromError はパイプライン中のエラーを対応するレスポンスに変換する
func FromError(err error) *Response {
	switch {
	case errors.Is(err, request.ErrMalformedRequest), errors.Is(err, request.ErrRequestTooLarge):
		return Error(http.StatusBadRequest)
	case errors.Is(err, fs.ErrNotExist):
		// 分類後に削除された場合など
		return Error(http.StatusNotFound)
	default:
		return Error(http.StatusInternalServerError)
	}
}

// ContentType は拡張子から Content-Type を返す
func ContentType(path string) string {
	if ct, ok := contentTypes[filepath.Ext(path)]; ok {
		return ct
	}
	return defaultContentType
}

// Header は指定した名前のヘッダー値を返す
func (r *Response) Header(name string) string {
	for _, h := range r.Headers {
		if http.CanonicalHeaderKey(h.Name) == http.CanonicalHeaderKey(name) {
			return h.Value
		}
	}
	return ""
}

// Bytes はワイヤ形式のバイト列を返す
func (r *Response) Bytes() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "HTTP/1.1 %s\r\n", statusLabel(r.Status))
	for _, h := range r.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", h.Name, h.Value)
	}
	buf.WriteString("\r\n")
	buf.Write(r.Body)
	return buf.Bytes()
}

// WriteTo はレスポンスを書き出す
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Bytes())
	return int64(n), err
}

// newResponse は共通ヘッダーを付けたレスポンスを作成する
// extra は共通ヘッダーより前に置かれる
func newResponse(status int, contentType string, body []byte, extra ...Header) *Response {
	headers := make([]Header, 0, len(extra)+3)
	headers = append(headers, extra...)
	headers = append(headers,
		Header{Name: "Connection", Value: "Closed"},
		Header{Name: "Content-Type", Value: contentType},
		Header{Name: "Content-Length", Value: strconv.Itoa(len(body))},
	)
	return &Response{
		Status:  status,
		Headers: headers,
		Body:    body,
	}
}

// readFile はファイルの内容を読み込む
func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

// location はリダイレクト先のURLを返す
// IPv6 アドレスは net.TCPAddr.String によって角括弧で囲まれる
func location(local net.Addr, rel string) string {
	hostport := local.String()
	if rel == "." {
		return fmt.Sprintf("http://%s/", hostport)
	}
	return fmt.Sprintf("http://%s/%s/", hostport, rel)
}
