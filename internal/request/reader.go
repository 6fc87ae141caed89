package request

import (
	"bytes"
	"errors"
	"io"
)

var crlf = []byte("\r\n")

// ReadRequestLine はCRLFを受信するまで chunkSize ずつ読み込む
//
// 相手が途中で接続を閉じた場合は受信済みのデータをそのまま返し、解析側で
// 不正なリクエストとして扱う。1バイトも受信せずに閉じられた場合は io.EOF を返す。
// リクエスト行（CRLFを除く）が maxBytes を超えると ErrRequestTooLarge を返す。
func ReadRequestLine(r io.Reader, chunkSize, maxBytes int) ([]byte, error) {
	var buf bytes.Buffer
	chunk := make([]byte, chunkSize)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			// 直前のチャンク末尾の CR も含めて探す
			start := buf.Len() - 1
			if start < 0 {
				start = 0
			}
			buf.Write(chunk[:n])
			if i := bytes.Index(buf.Bytes()[start:], crlf); i >= 0 {
				// 上限はCRLFを除いたリクエスト行の長さに対して判定する
				if start+i > maxBytes {
					return nil, ErrRequestTooLarge
				}
				return buf.Bytes(), nil
			}
			// 末尾が CR の可能性があるため1バイトの余裕を持たせる
			if buf.Len() > maxBytes+1 {
				return nil, ErrRequestTooLarge
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) && buf.Len() > 0 {
				return buf.Bytes(), nil
			}
			return nil, err
		}
	}
}
