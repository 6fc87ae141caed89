// Package server は、静的ファイルを配信するTCPサーバーを管理します。
//
// このパッケージは、接続の受け付けと、1接続1リクエストの処理パイプライン
// （読み込み → 解析 → 解決 → 応答 → 切断）の組み立てを担当します。
//
// 責務:
//   - TCPリスナーの起動と接続の受け付け
//   - 接続ごとの読み込み・書き込みタイムアウトの設定
//   - 不正なリクエストへの 400 応答
//   - アクセスログの出力（接続ごとにUUIDを付与）
//   - グレースフルシャットダウン
//
// 仕様:
//   - HTTPの解釈は net/http を使わず internal/request と internal/response で行う
//   - Keep-Alive はサポートしない（応答後に必ず切断する）
//   - 同時接続数は golang.org/x/net/netutil で制限する
//   - 接続間で共有する可変状態は持たない
package server
