package application

import (
	"context"
	"sync"
	"time"

	"pixel-mural/mural/domain"
)

// Uploads remonta listas de pixels entregues em chunks (para respeitar o
// limite de payload do transporte), indexadas por imageId.
//
// Disciplina de concorrência: uma única seção crítica protege a tabela de
// sessões; nenhuma operação observa estado de uma sessão intercalado.
type Uploads struct {
	mu       sync.Mutex
	sessions map[string]*uploadSession
	// imageIds já montados; chunk retransmitido depois da conclusão é no-op.
	// Podado pelo janitor junto com as sessões paradas.
	completed map[string]time.Time

	idleTTL      time.Duration
	cleanupEvery time.Duration
	maxChunks    int
}

type uploadSession struct {
	owner    string
	startX   int
	startY   int
	total    int
	chunks   [][]domain.Pixel
	received int
	lastSeen time.Time
}

// ChunkResult é o resultado de um submitChunk. Quando Complete, Pixels traz a
// lista inteira concatenada em ordem de índice (não de chegada) e a sessão já
// foi descartada.
type ChunkResult struct {
	ImageID        string
	ChunksReceived int
	TotalChunks    int
	Complete       bool

	Pixels []domain.Pixel
	StartX int
	StartY int
	Owner  string
}

type UploadsOption func(*Uploads)

// WithUploadIdleTTL define por quanto tempo uma sessão incompleta sobrevive
// sem receber chunk antes de ser recolhida pelo janitor.
func WithUploadIdleTTL(d time.Duration) UploadsOption {
	return func(u *Uploads) { u.idleTTL = d }
}

func WithUploadCleanupEvery(d time.Duration) UploadsOption {
	return func(u *Uploads) { u.cleanupEvery = d }
}

// WithUploadMaxChunks limita o totalChunks aceito por sessão. A tabela de
// chunks é alocada proporcional a esse número, então ele tem que ser limitado
// antes de qualquer alocação. 0 = sem limite.
func WithUploadMaxChunks(n int) UploadsOption {
	return func(u *Uploads) { u.maxChunks = n }
}

func NewUploads(opts ...UploadsOption) *Uploads {
	u := &Uploads{
		sessions:     make(map[string]*uploadSession),
		completed:    make(map[string]time.Time),
		idleTTL:      2 * time.Minute,
		cleanupEvery: 30 * time.Second,
		maxChunks:    1024,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Submit registra um chunk. O primeiro chunk de um imageId cria a sessão
// (gravando totalChunks, âncora e dono); chunks seguintes precisam bater com
// ela. Índice duplicado é idempotente. Quando o último chunk chega, a lista
// completa é devolvida e a sessão descartada.
func (u *Uploads) Submit(imageID string, chunkIndex, totalChunks int, owner string, startX, startY int, pixels []domain.Pixel) (ChunkResult, error) {
	if imageID == "" {
		return ChunkResult{}, domain.ValidationError{Msg: "empty image id"}
	}
	if totalChunks < 1 {
		return ChunkResult{}, domain.ValidationError{Msg: "totalChunks must be >= 1"}
	}
	if u.maxChunks > 0 && totalChunks > u.maxChunks {
		return ChunkResult{}, domain.ValidationError{Msg: "totalChunks above the session limit"}
	}
	if chunkIndex < 0 || chunkIndex >= totalChunks {
		return ChunkResult{}, domain.ValidationError{Msg: "chunkIndex out of range"}
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	if _, done := u.completed[imageID]; done {
		return ChunkResult{
			ImageID:        imageID,
			ChunksReceived: totalChunks,
			TotalChunks:    totalChunks,
			Owner:          owner,
		}, nil
	}

	sess, ok := u.sessions[imageID]
	if !ok {
		sess = &uploadSession{
			owner:  owner,
			startX: startX,
			startY: startY,
			total:  totalChunks,
			chunks: make([][]domain.Pixel, totalChunks),
		}
		u.sessions[imageID] = sess
	}

	if sess.owner != owner {
		return ChunkResult{}, domain.ConflictError{Msg: "upload session owned by another connection"}
	}
	if sess.total != totalChunks {
		return ChunkResult{}, domain.ProtocolError{Msg: "totalChunks mismatch for upload session"}
	}

	sess.lastSeen = time.Now()

	if sess.chunks[chunkIndex] == nil {
		sess.chunks[chunkIndex] = pixels
		sess.received++
	}
	// índice já recebido: entrega duplicada é segura, só reporta o estado

	res := ChunkResult{
		ImageID:        imageID,
		ChunksReceived: sess.received,
		TotalChunks:    sess.total,
		StartX:         sess.startX,
		StartY:         sess.startY,
		Owner:          sess.owner,
	}
	if sess.received < sess.total {
		return res, nil
	}

	// completo: concatena em ordem de índice e descarta a sessão
	var all []domain.Pixel
	for _, chunk := range sess.chunks {
		all = append(all, chunk...)
	}
	delete(u.sessions, imageID)
	u.completed[imageID] = time.Now()

	res.Complete = true
	res.Pixels = all
	return res, nil
}

// DiscardOwner descarta imediatamente as sessões em andamento de uma conexão
// que desconectou. Retorna quantas foram removidas.
func (u *Uploads) DiscardOwner(owner string) int {
	u.mu.Lock()
	defer u.mu.Unlock()

	n := 0
	for id, sess := range u.sessions {
		if sess.owner == owner {
			delete(u.sessions, id)
			n++
		}
	}
	return n
}

// Cleanup recolhe sessões incompletas paradas há mais que o idleTTL
// (clientes que sumiram sem desconexão limpa).
func (u *Uploads) Cleanup() {
	cutoff := time.Now().Add(-u.idleTTL)

	u.mu.Lock()
	defer u.mu.Unlock()

	for id, sess := range u.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(u.sessions, id)
		}
	}
	for id, at := range u.completed {
		if at.Before(cutoff) {
			delete(u.completed, id)
		}
	}
}

// StartJanitor inicia uma goroutine que recolhe sessões paradas
// periodicamente. Pare cancelando o contexto.
func (u *Uploads) StartJanitor(ctx context.Context) {
	if u.cleanupEvery <= 0 {
		return
	}

	t := time.NewTicker(u.cleanupEvery)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				u.Cleanup()
			}
		}
	}()
}

// Pending informa quantas sessões estão em andamento (para testes/inspeção).
func (u *Uploads) Pending() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.sessions)
}
