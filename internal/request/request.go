// Package request はHTTP/1.1のリクエスト行の読み込みと解析を担う。
//
// リクエスト行以降のヘッダーとボディは読み捨てる。
package request

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

var (
	// ErrMalformedRequest はリクエスト行を解析できないことを示す
	ErrMalformedRequest = errors.New("不正なリクエスト")
	// ErrRequestTooLarge はリクエスト行が上限を超えたことを示す
	ErrRequestTooLarge = errors.New("リクエスト行が大きすぎます")
)

// requestLinePattern は METHOD SP TARGET SP HTTP/VERSION にマッチする
var requestLinePattern = regexp.MustCompile(`^([A-Z]+) (\S+) HTTP/(\S+)$`)

// Request は解析済みのリクエスト行
type Request struct {
	Method  string // 例: GET
	URI     string // リクエストターゲット（デコードしない）
	Version string // HTTP/ 以降のバージョン (例: 1.1)
}

// Parse は受信した生データからリクエスト行を解析する
// UTF-8 として検証するのはリクエスト行のみで、ヘッダーとボディは見ない
func Parse(raw []byte) (*Request, error) {
	line, _, ok := bytes.Cut(raw, crlf)
	if !ok {
		return nil, fmt.Errorf("%w: リクエスト行が終端していません", ErrMalformedRequest)
	}

	if !utf8.Valid(line) {
		return nil, fmt.Errorf("%w: UTF-8として解釈できません", ErrMalformedRequest)
	}

	// 先頭のBOMは取り除く
	decoded, err := unicode.UTF8BOM.NewDecoder().Bytes(line)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}

	match := requestLinePattern.FindStringSubmatch(string(decoded))
	if match == nil {
		return nil, fmt.Errorf("%w: %q", ErrMalformedRequest, decoded)
	}

	return &Request{
		Method:  match[1],
		URI:     match[2],
		Version: match[3],
	}, nil
}

// String はログ出力用の表現を返す
func (r *Request) String() string {
	return fmt.Sprintf("%s %s HTTP/%s", r.Method, r.URI, r.Version)
}
