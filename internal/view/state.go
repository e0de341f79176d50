// Package view はニュース一覧ビューのフェッチライフサイクルを管理する。
//
// ライフサイクルは Loading → Ready ⇄ Refreshing の3状態で表す。
// 状態遷移はI/Oを持たない純粋関数（Mount, BeginRefresh, Commit, Fail）として定義し、
// View がそれらを排他制御の下で適用する。
package view

import (
	"time"

	"github.com/hitoshi/topnews/internal/model"
)

// Phase はフェッチライフサイクル上の現在位置を表す。
type Phase int

const (
	// PhaseLoading はまだ一度もスナップショットを表示していない状態。
	PhaseLoading Phase = iota
	// PhaseReady はスナップショットを表示中で、フェッチが進行していない状態。
	PhaseReady
	// PhaseRefreshing はスナップショットを表示したまま、更新フェッチが進行中の状態。
	PhaseRefreshing
)

// String はPhaseの名前を返す。
func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// MarshalText はJSONでPhaseを名前として出力する。
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Failure は直近のフェッチ失敗の記録。診断用であり、表示するかどうかは描画側の設定による。
type Failure struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// State はビュー1つ分のライフサイクル状態。
// Snapshotはコミット後に変更しないため、Stateのコピー間で共有してよい。
type State struct {
	Phase       Phase
	Snapshot    *model.Snapshot
	Generation  uint64
	InFlight    bool
	Mounted     bool
	LastFailure *Failure
}

// Mount はマウント時の初回ロードを開始する。
// 1インスタンスにつき1回だけ成功し、2回目以降は状態を変えずにfalseを返す。
func Mount(s State) (State, bool) {
	if s.Mounted {
		return s, false
	}
	s.Mounted = true
	s.Phase = PhaseLoading
	s.InFlight = true
	return s, true
}

// BeginRefresh はユーザー操作による更新を開始する。
// Readyかつフェッチが進行していない場合のみ成功する。
// Refreshing中やLoading中は状態を変えずにfalseを返し、呼び出し元はリクエストを発行しない。
func BeginRefresh(s State) (State, bool) {
	if !s.Mounted || s.InFlight || s.Phase != PhaseReady {
		return s, false
	}
	s.Phase = PhaseRefreshing
	s.InFlight = true
	return s, true
}

// Commit は成功したレスポンスのスナップショットを一括で反映し、Readyに戻す。
// 進行中のフェッチがない場合は何もしない。
func Commit(s State, snap model.Snapshot) State {
	if !s.InFlight {
		return s
	}
	s.Snapshot = &snap
	s.Generation++
	s.Phase = PhaseReady
	s.InFlight = false
	s.LastFailure = nil
	return s
}

// Fail はフェッチ失敗を反映する。既存のスナップショットはそのまま残し、Readyに戻す。
// 初回ロードの失敗ではスナップショットなしのReadyになる。
// 進行中のフェッチがない場合は何もしない。
func Fail(s State, f Failure) State {
	if !s.InFlight {
		return s
	}
	s.Phase = PhaseReady
	s.InFlight = false
	s.LastFailure = &f
	return s
}
