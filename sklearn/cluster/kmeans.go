package cluster

import (
	"bytes"
	"encoding/gob"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlcore/core/dataset"
	"github.com/YuminosukeSato/mlcore/core/model"
	"github.com/YuminosukeSato/mlcore/core/parallel"
	"github.com/YuminosukeSato/mlcore/core/stats"
	"github.com/YuminosukeSato/mlcore/pkg/errors"
	"github.com/YuminosukeSato/mlcore/pkg/log"
)

// parallelThreshold を超えるサンプル数のとき割り当てステップを並列化する
const parallelThreshold = 2048

// KMeans はLloyd法によるK-meansクラスタリング
//
// 初期中心は学習データからK個の異なる行を一様に選ぶ。割り当てが前回の
// イテレーションと変わらなくなった時点で収束とみなす。
type KMeans struct {
	model.BaseEstimator

	// ハイパーパラメータ
	nClusters   int   // クラスタ数
	maxIter     int   // 最大イテレーション数
	randomState int64 // 乱数シード（負の値は時刻から生成）

	// 学習パラメータ
	clusterCenters_ [][]float64 // クラスタ中心（nClusters x nFeatures）
	labels_         []int       // 各サンプルのクラスタラベル
	inertia_        float64     // クラスタ内平方和誤差
	inertiaHistory_ []float64   // 各イテレーションの慣性
	nIter_          int         // 実行されたイテレーション数
	converged_      bool        // maxIter以内に収束したか

	// 内部状態
	mu         sync.RWMutex
	rng        *rand.Rand
	logger     log.Logger
	nFeatures_ int
}

// KMeansOption はKMeansの設定オプション
type KMeansOption func(*KMeans)

// NewKMeans は新しいKMeansを作成
func NewKMeans(options ...KMeansOption) *KMeans {
	kmeans := &KMeans{
		nClusters:   3,
		maxIter:     100,
		randomState: -1,
	}

	for _, opt := range options {
		opt(kmeans)
	}

	if kmeans.logger == nil {
		kmeans.logger = log.GetLoggerWithName("cluster.kmeans")
	}
	kmeans.logger = kmeans.logger.With(
		log.ModelNameKey, "KMeans",
		log.EstimatorIDKey, kmeans.ID(),
	)

	return kmeans
}

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.nClusters = n
	}
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.maxIter = maxIter
	}
}

// WithKMeansRandomState は乱数シードを設定
// 0以上のシードを指定すると同じ入力に対して同じ結果を返す
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.randomState = seed
	}
}

// WithKMeansLogger はログ出力先を設定
func WithKMeansLogger(logger log.Logger) KMeansOption {
	return func(kmeans *KMeans) {
		kmeans.logger = logger
	}
}

// validateParams はハイパーパラメータを検証
func (kmeans *KMeans) validateParams() error {
	if kmeans.nClusters < 1 {
		return errors.NewConfigurationError("n_clusters", "must be >= 1", kmeans.nClusters)
	}
	if kmeans.maxIter < 1 {
		return errors.NewConfigurationError("max_iter", "must be >= 1", kmeans.maxIter)
	}
	return nil
}

// Fit はモデルを訓練する。yは使用しない（nilでよい）
func (kmeans *KMeans) Fit(X, y mat.Matrix) error {
	if err := kmeans.validateParams(); err != nil {
		return err
	}
	rows, err := dataset.Rows("KMeans.Fit", X)
	if err != nil {
		return err
	}
	return kmeans.fitRows(rows)
}

// FitRows は行スライスから直接学習する。行の長さが揃っていない場合はエラー
func (kmeans *KMeans) FitRows(rows [][]float64) error {
	if err := kmeans.validateParams(); err != nil {
		return err
	}
	if _, err := dataset.ValidateRows("KMeans.Fit", rows); err != nil {
		return err
	}
	return kmeans.fitRows(rows)
}

// fitRand は学習1回分の乱数生成器を返す
// シード指定時は毎回新しく作るため、同じインスタンスで再学習しても結果は変わらない
// シード未指定時はインスタンスが持つ生成器を使い続ける
func (kmeans *KMeans) fitRand() *rand.Rand {
	if kmeans.randomState >= 0 {
		return stats.NewRand(kmeans.randomState)
	}
	if kmeans.rng == nil {
		kmeans.rng = stats.NewRand(-1)
	}
	return kmeans.rng
}

func (kmeans *KMeans) fitRows(rows [][]float64) error {
	nSamples, nFeatures := len(rows), len(rows[0])
	if nSamples < kmeans.nClusters {
		return errors.NewInvalidInputErrorf("KMeans.Fit",
			"n_samples=%d should be >= n_clusters=%d", nSamples, kmeans.nClusters)
	}

	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	start := time.Now()

	// クラスタ中心の初期化: 異なるK行を選ぶ
	centers := make([][]float64, kmeans.nClusters)
	for k, idx := range stats.SampleDistinct(kmeans.fitRand(), nSamples, kmeans.nClusters) {
		centers[k] = append([]float64(nil), rows[idx]...)
	}

	labels := make([]int, nSamples)
	for i := range labels {
		labels[i] = -1
	}
	next := make([]int, nSamples)
	dists := make([]float64, nSamples)
	history := make([]float64, 0, kmeans.maxIter)
	members := make([][]int, kmeans.nClusters)

	converged := false
	nIter := 0
	for iter := 0; iter < kmeans.maxIter; iter++ {
		nIter = iter + 1

		assign(rows, centers, next, dists)
		inertia := 0.0
		for _, d := range dists {
			inertia += d
		}
		history = append(history, inertia)

		kmeans.logger.Debug("iteration completed",
			log.IterationKey, nIter,
			log.InertiaKey, inertia,
		)

		if equalInts(labels, next) {
			converged = true
			break
		}
		labels, next = next, labels

		// 中心の更新（空クラスタは前回の中心を保持）
		for k := range members {
			members[k] = members[k][:0]
		}
		for i, l := range labels {
			members[l] = append(members[l], i)
		}
		for k := range centers {
			stats.Mean(centers[k], rows, members[k])
		}
	}

	// 最終的な割り当てとその中心に対する慣性
	finalInertia := 0.0
	for i, l := range labels {
		finalInertia += stats.SquaredDistance(rows[i], centers[l])
	}

	kmeans.clusterCenters_ = centers
	kmeans.labels_ = labels
	kmeans.inertia_ = finalInertia
	kmeans.inertiaHistory_ = history
	kmeans.nIter_ = nIter
	kmeans.converged_ = converged
	kmeans.nFeatures_ = nFeatures
	kmeans.SetFitted()

	if !converged {
		w := errors.NewConvergenceWarning("KMeans", nIter,
			"assignments still changing; consider increasing max_iter")
		errors.Warn(w)
	}

	kmeans.logger.Info("fit completed",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClustersKey, kmeans.nClusters,
		log.IterationKey, nIter,
		log.InertiaKey, finalInertia,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	return nil
}

// assign は各サンプルを最近傍の中心に割り当て、距離の二乗をdistsに書き込む
func assign(rows, centers [][]float64, labels []int, dists []float64) {
	parallel.ParallelizeWithThreshold(len(rows), parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			labels[i], dists[i] = stats.Nearest(rows[i], centers)
		}
	})
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// predictRows は学習済みの中心に対する割り当てを返す。mu保持中に呼ぶこと
func (kmeans *KMeans) predictRows(op string, X mat.Matrix) ([]int, [][]float64, error) {
	if !kmeans.IsFitted() {
		return nil, nil, errors.NewNotFittedError("KMeans", op)
	}
	rows, err := dataset.Rows("KMeans."+op, X)
	if err != nil {
		return nil, nil, err
	}
	if err := dataset.CheckFeatures("KMeans."+op, rows, kmeans.nFeatures_); err != nil {
		return nil, nil, err
	}

	labels := make([]int, len(rows))
	dists := make([]float64, len(rows))
	assign(rows, kmeans.clusterCenters_, labels, dists)
	return labels, rows, nil
}

// Predict は入力データに対するクラスタ予測を行う（n x 1）
func (kmeans *KMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	labels, _, err := kmeans.predictRows("Predict", X)
	if err != nil {
		return nil, err
	}
	return dataset.IntColumn(labels), nil
}

// FitPredict は学習と予測を同時に行い、学習データのクラスタ割り当てを返す
func (kmeans *KMeans) FitPredict(X, y mat.Matrix) (mat.Matrix, error) {
	if err := kmeans.Fit(X, y); err != nil {
		return nil, err
	}
	return dataset.IntColumn(kmeans.Labels()), nil
}

// Transform はデータを各クラスタ中心とのユークリッド距離に変換（n x nClusters）
func (kmeans *KMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if !kmeans.IsFitted() {
		return nil, errors.NewNotFittedError("KMeans", "Transform")
	}
	rows, err := dataset.Rows("KMeans.Transform", X)
	if err != nil {
		return nil, err
	}
	if err := dataset.CheckFeatures("KMeans.Transform", rows, kmeans.nFeatures_); err != nil {
		return nil, err
	}

	distances := mat.NewDense(len(rows), len(kmeans.clusterCenters_), nil)
	for i, row := range rows {
		for k, c := range kmeans.clusterCenters_ {
			distances.Set(i, k, math.Sqrt(stats.SquaredDistance(row, c)))
		}
	}
	return distances, nil
}

// ClusterCenters は学習されたクラスタ中心のコピーを返す
func (kmeans *KMeans) ClusterCenters() [][]float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if kmeans.clusterCenters_ == nil {
		return nil
	}
	centers := make([][]float64, len(kmeans.clusterCenters_))
	for i := range kmeans.clusterCenters_ {
		centers[i] = append([]float64(nil), kmeans.clusterCenters_[i]...)
	}
	return centers
}

// Labels は学習データのクラスタラベルのコピーを返す
func (kmeans *KMeans) Labels() []int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()

	if kmeans.labels_ == nil {
		return nil
	}
	return append([]int(nil), kmeans.labels_...)
}

// Inertia は慣性（クラスタ内平方和誤差）を返す
func (kmeans *KMeans) Inertia() float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.inertia_
}

// InertiaHistory は各イテレーションの割り当て直後の慣性を返す
func (kmeans *KMeans) InertiaHistory() []float64 {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return append([]float64(nil), kmeans.inertiaHistory_...)
}

// NIter は実行されたイテレーション数を返す
func (kmeans *KMeans) NIter() int {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.nIter_
}

// Converged はmaxIter以内に割り当てが安定したかを返す
func (kmeans *KMeans) Converged() bool {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return kmeans.converged_
}

// NClusters は設定されたクラスタ数を返す
func (kmeans *KMeans) NClusters() int {
	return kmeans.nClusters
}

// KMeansSnapshot はgobで保存されるKMeansの状態
type KMeansSnapshot struct {
	NClusters      int
	MaxIter        int
	RandomState    int64
	Centers        [][]float64
	Labels         []int
	Inertia        float64
	InertiaHistory []float64
	NIter          int
	Converged      bool
	NFeatures      int
	Fitted         bool
}

// GobEncode はgob.GobEncoderを実装する
func (kmeans *KMeans) GobEncode() ([]byte, error) {
	kmeans.mu.RLock()
	snap := KMeansSnapshot{
		NClusters:      kmeans.nClusters,
		MaxIter:        kmeans.maxIter,
		RandomState:    kmeans.randomState,
		Centers:        kmeans.clusterCenters_,
		Labels:         kmeans.labels_,
		Inertia:        kmeans.inertia_,
		InertiaHistory: kmeans.inertiaHistory_,
		NIter:          kmeans.nIter_,
		Converged:      kmeans.converged_,
		NFeatures:      kmeans.nFeatures_,
		Fitted:         kmeans.IsFitted(),
	}
	kmeans.mu.RUnlock()

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(snap); err != nil {
		return nil, errors.Wrap(err, "encode KMeans")
	}
	return buf.Bytes(), nil
}

// GobDecode はgob.GobDecoderを実装する
func (kmeans *KMeans) GobDecode(data []byte) error {
	var snap KMeansSnapshot
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&snap); err != nil {
		return errors.Wrap(err, "decode KMeans")
	}

	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	kmeans.nClusters = snap.NClusters
	kmeans.maxIter = snap.MaxIter
	kmeans.randomState = snap.RandomState
	kmeans.clusterCenters_ = snap.Centers
	kmeans.labels_ = snap.Labels
	kmeans.inertia_ = snap.Inertia
	kmeans.inertiaHistory_ = snap.InertiaHistory
	kmeans.nIter_ = snap.NIter
	kmeans.converged_ = snap.Converged
	kmeans.nFeatures_ = snap.NFeatures
	if kmeans.logger == nil {
		kmeans.logger = log.GetLoggerWithName("cluster.kmeans")
	}
	if snap.Fitted {
		kmeans.SetFitted()
	} else {
		kmeans.Reset()
	}
	return nil
}

// GetParams はハイパーパラメータをscikit-learnの引数名で返す
func (kmeans *KMeans) GetParams(deep bool) map[string]interface{} {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return map[string]interface{}{
		"n_clusters":   kmeans.nClusters,
		"max_iter":     kmeans.maxIter,
		"random_state": kmeans.randomState,
	}
}

// SetParams はハイパーパラメータを更新する
// 不正なキーや値があればモデルは変更されない。学習済みの結果は次のFitまで残る
func (kmeans *KMeans) SetParams(params map[string]interface{}) error {
	kmeans.mu.Lock()
	defer kmeans.mu.Unlock()

	candidate := &KMeans{
		nClusters:   kmeans.nClusters,
		maxIter:     kmeans.maxIter,
		randomState: kmeans.randomState,
	}
	for key, value := range params {
		var err error
		switch key {
		case "n_clusters":
			candidate.nClusters, err = model.ParamInt(key, value)
		case "max_iter":
			candidate.maxIter, err = model.ParamInt(key, value)
		case "random_state":
			candidate.randomState, err = model.ParamInt64(key, value)
		default:
			err = model.UnknownParam(key, value)
		}
		if err != nil {
			return err
		}
	}
	if err := candidate.validateParams(); err != nil {
		return err
	}
	kmeans.nClusters = candidate.nClusters
	kmeans.maxIter = candidate.maxIter
	kmeans.randomState = candidate.randomState
	return nil
}

// Clone は同じハイパーパラメータを持つ未学習のKMeansを返す
// ロガーは既定の"cluster.kmeans"になり、新しい推定器IDが付く
func (kmeans *KMeans) Clone() model.SKLearnCompatible {
	kmeans.mu.RLock()
	defer kmeans.mu.RUnlock()
	return NewKMeans(
		WithKMeansNClusters(kmeans.nClusters),
		WithKMeansMaxIter(kmeans.maxIter),
		WithKMeansRandomState(kmeans.randomState),
	)
}

var (
	_ model.Clusterer         = (*KMeans)(nil)
	_ model.TransformerMixin  = (*KMeans)(nil)
	_ model.SKLearnCompatible = (*KMeans)(nil)
)
