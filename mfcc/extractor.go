package mfcc

import (
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"github.com/pkg/errors"
)

const (
	defaultWindowDuration  = 25 * time.Millisecond
	defaultHopDuration     = 10 * time.Millisecond
	defaultNumFilters      = 40
	defaultNumCoefficients = 13
	defaultPreEmphasis     = 0.97
	defaultEnergyFloor     = 1e-10
)

// Extractor는 고정된 샘플레이트와 설정으로 MFCC를 반복 계산한다.
type Extractor struct {
	sampleRate      int
	windowSize      int
	hopSize         int
	nfft            int
	binCount        int
	powerScale      float64
	numFilters      int
	numCoefficients int
	preEmphasis     float64
	energyFloor     float64
	logEnergyFloor  float64

	// 아래 값들은 같은 설정의 Extractor끼리 공유하며 읽기 전용이다.
	dctMatrix    [][]float64
	hamming      []float64
	filterBank   [][]float64
	filterStarts []int
	filterEnds   []int

	// 프레임마다 덮어쓰는 작업 버퍼.
	windowed      []float64
	powerSpectrum []float64
	filtered      []float64
	preprocessed  []float64
}

type mfccConfig struct {
	sampleRate      int
	windowSize      int
	hopSize         int
	nfft            int
	binCount        int
	numFilters      int
	numCoefficients int
	preEmphasis     float64
	energyFloor     float64
	*extractorSetup
}

type extractorSetup struct {
	dctMatrix    [][]float64
	hamming      []float64
	filterBank   [][]float64
	filterStarts []int
	filterEnds   []int
}

type setupKey struct {
	sampleRate      int
	windowSize      int
	nfft            int
	numFilters      int
	numCoefficients int
}

var setupCache sync.Map // setupKey -> *extractorSetup

func getMFCCConfig(sampleRate int, cfg Config) (mfccConfig, error) {
	var resolved mfccConfig
	if sampleRate <= 0 {
		return resolved, errors.Errorf("invalid sample rate: %dHz", sampleRate)
	}

	windowDuration := cfg.WindowDuration
	if windowDuration == 0 {
		windowDuration = defaultWindowDuration
	}
	if windowDuration < 0 {
		return resolved, errors.Errorf("invalid window duration: %v", windowDuration)
	}
	hopDuration := cfg.HopDuration
	if hopDuration == 0 {
		hopDuration = defaultHopDuration
	}
	if hopDuration < 0 {
		return resolved, errors.Errorf("invalid hop duration: %v", hopDuration)
	}

	numFilters := cfg.NumFilters
	if numFilters == 0 {
		numFilters = defaultNumFilters
	}
	numCoefficients := cfg.NumCoefficients
	if numCoefficients == 0 {
		numCoefficients = defaultNumCoefficients
	}
	if numFilters < 0 {
		return resolved, errors.Errorf("invalid num filters: %d", numFilters)
	}
	if numCoefficients < 0 {
		return resolved, errors.Errorf("invalid num coefficients: %d", numCoefficients)
	}
	if numCoefficients > numFilters {
		return resolved, errors.Errorf("num coefficients (%d) exceed num filters (%d)", numCoefficients, numFilters)
	}

	preEmphasis := cfg.PreEmphasis
	if preEmphasis == 0 {
		preEmphasis = defaultPreEmphasis
	}
	if cfg.DisablePreEmphasis {
		preEmphasis = 0
	}
	if math.IsNaN(preEmphasis) || preEmphasis < 0 || preEmphasis >= 1 {
		return resolved, errors.Errorf("invalid pre-emphasis coefficient: %v", preEmphasis)
	}
	energyFloor := cfg.EnergyFloor
	if energyFloor == 0 {
		energyFloor = defaultEnergyFloor
	}
	if !(energyFloor > 0) || math.IsInf(energyFloor, 0) {
		return resolved, errors.Errorf("invalid energy floor: %v", energyFloor)
	}

	windowSize, hopSize := frameParamsFromDurations(sampleRate, windowDuration, hopDuration)
	if windowSize < 2 {
		return resolved, errors.Errorf("invalid window duration: %v gives %d samples at %dHz", windowDuration, windowSize, sampleRate)
	}
	if hopSize < 1 {
		return resolved, errors.Errorf("invalid hop duration: %v gives %d samples at %dHz", hopDuration, hopSize, sampleRate)
	}
	nfft := nextPow2(windowSize)

	setup, err := loadExtractorSetup(setupKey{
		sampleRate:      sampleRate,
		windowSize:      windowSize,
		nfft:            nfft,
		numFilters:      numFilters,
		numCoefficients: numCoefficients,
	})
	if err != nil {
		return resolved, err
	}

	return mfccConfig{
		sampleRate:      sampleRate,
		windowSize:      windowSize,
		hopSize:         hopSize,
		nfft:            nfft,
		binCount:        nfft/2 + 1,
		numFilters:      numFilters,
		numCoefficients: numCoefficients,
		preEmphasis:     preEmphasis,
		energyFloor:     energyFloor,
		extractorSetup:  setup,
	}, nil
}

func loadExtractorSetup(key setupKey) (*extractorSetup, error) {
	if cached, ok := setupCache.Load(key); ok {
		return cached.(*extractorSetup), nil
	}

	filterBank := createFilterBank(key.nfft, key.sampleRate, key.numFilters)
	starts := make([]int, len(filterBank))
	ends := make([]int, len(filterBank))
	for i, filter := range filterBank {
		start, end := nonZeroRange(filter)
		if end <= start {
			return nil, errors.Errorf("insufficient mel resolution: filter %d of %d has no FFT bins (nfft=%d, sample rate=%dHz)",
				i, key.numFilters, key.nfft, key.sampleRate)
		}
		starts[i], ends[i] = start, end
	}

	setup := &extractorSetup{
		dctMatrix:    makeDCTMatrix(key.numCoefficients, key.numFilters),
		hamming:      window.Hamming(key.windowSize),
		filterBank:   filterBank,
		filterStarts: starts,
		filterEnds:   ends,
	}
	actual, _ := setupCache.LoadOrStore(key, setup)
	return actual.(*extractorSetup), nil
}

func newExtractorFromConfig(resolved mfccConfig) *Extractor {
	return &Extractor{
		sampleRate:      resolved.sampleRate,
		windowSize:      resolved.windowSize,
		hopSize:         resolved.hopSize,
		nfft:            resolved.nfft,
		binCount:        resolved.binCount,
		powerScale:      1.0 / float64(resolved.nfft),
		numFilters:      resolved.numFilters,
		numCoefficients: resolved.numCoefficients,
		preEmphasis:     resolved.preEmphasis,
		energyFloor:     resolved.energyFloor,
		logEnergyFloor:  math.Log(resolved.energyFloor),
		dctMatrix:       resolved.dctMatrix,
		hamming:         resolved.hamming,
		filterBank:      resolved.filterBank,
		filterStarts:    resolved.filterStarts,
		filterEnds:      resolved.filterEnds,
		windowed:        make([]float64, resolved.nfft),
		powerSpectrum:   make([]float64, resolved.binCount),
		filtered:        make([]float64, resolved.numFilters),
	}
}

// frameParamsFromDurations는 창/홉 길이를 가장 가까운 샘플 수로 바꾼다.
func frameParamsFromDurations(sampleRate int, windowDuration, hopDuration time.Duration) (int, int) {
	windowSize := int(math.Round(float64(sampleRate) * windowDuration.Seconds()))
	hopSize := int(math.Round(float64(sampleRate) * hopDuration.Seconds()))
	return windowSize, hopSize
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func nonZeroRange(filter []float64) (int, int) {
	start, end := -1, -1
	for i, v := range filter {
		if v == 0 {
			continue
		}
		if start < 0 {
			start = i
		}
		end = i + 1
	}
	if start < 0 {
		return 0, 0
	}
	return start, end
}

func hzToMel(hz float64) float64 {
	return 2595 * math.Log10(1+hz/700)
}

func melToHz(mel float64) float64 {
	return 700 * (math.Pow(10, mel/2595) - 1)
}

// createFilterBank는 0Hz부터 나이퀴스트까지 HTK 멜 눈금으로 나눈 삼각 필터를 만든다.
// 각 필터는 Slaney 방식으로 대역폭에 맞춰 정규화되어 주파수 축 면적이 1에 가깝다.
func createFilterBank(nfft, sampleRate, numFilters int) [][]float64 {
	binCount := nfft/2 + 1
	maxMel := hzToMel(float64(sampleRate) / 2)

	edges := make([]float64, numFilters+2)
	for i := range edges {
		edges[i] = melToHz(maxMel * float64(i) / float64(numFilters+1))
	}

	binHz := float64(sampleRate) / float64(nfft)
	filterBank := make([][]float64, numFilters)
	for m := range numFilters {
		lower, center, upper := edges[m], edges[m+1], edges[m+2]
		norm := 2 / (upper - lower)
		filter := make([]float64, binCount)
		for k := range binCount {
			f := float64(k) * binHz
			rising := (f - lower) / (center - lower)
			falling := (upper - f) / (upper - center)
			w := math.Min(rising, falling)
			if w > 0 && !math.IsInf(w, 0) {
				filter[k] = w * norm
			}
		}
		filterBank[m] = filter
	}
	return filterBank
}

// makeDCTMatrix는 정규직교 DCT-II 행렬의 앞쪽 numCoefficients 행을 만든다.
func makeDCTMatrix(numCoefficients, numFilters int) [][]float64 {
	matrix := make([][]float64, numCoefficients)
	n := float64(numFilters)
	for k := range numCoefficients {
		scale := math.Sqrt(2 / n)
		if k == 0 {
			scale = math.Sqrt(1 / n)
		}
		row := make([]float64, numFilters)
		for i := range numFilters {
			row[i] = scale * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/n)
		}
		matrix[k] = row
	}
	return matrix
}

// preprocessSamplesWithMeanInto는 DC 성분을 빼고 프리엠퍼시스를 적용한 결과를 dst에 쓴다.
// mean이 NaN이면 samples에서 직접 평균을 구한다.
func preprocessSamplesWithMeanInto(dst, samples []float64, preEmphasis, mean float64) []float64 {
	if cap(dst) < len(samples) {
		dst = make([]float64, len(samples))
	}
	dst = dst[:len(samples)]
	if len(samples) == 0 {
		return dst
	}
	if math.IsNaN(mean) {
		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		mean = sum / float64(len(samples))
	}

	prev := samples[0] - mean
	dst[0] = prev
	for i := 1; i < len(samples); i++ {
		cur := samples[i] - mean
		dst[i] = cur - preEmphasis*prev
		prev = cur
	}
	return dst
}

func (e *Extractor) calculateWithMean(samples []float64, mean float64) [][]float64 {
	if len(samples) < e.windowSize {
		return nil
	}
	e.preprocessed = preprocessSamplesWithMeanInto(e.preprocessed, samples, e.preEmphasis, mean)

	numFrames := (len(samples)-e.windowSize)/e.hopSize + 1
	flat := make([]float64, numFrames*e.numCoefficients)
	mfcc := make([][]float64, numFrames)
	for f := range numFrames {
		start := f * e.hopSize
		frame := e.preprocessed[start : start+e.windowSize]
		for i, v := range frame {
			e.windowed[i] = v * e.hamming[i]
		}
		clear(e.windowed[e.windowSize:])

		dst := flat[f*e.numCoefficients : (f+1)*e.numCoefficients : (f+1)*e.numCoefficients]
		e.computeMFCC(fft.FFTReal(e.windowed), dst)
		mfcc[f] = dst
	}
	return mfcc
}

// computeMFCC는 한 프레임의 FFT 결과로부터 MFCC를 dst에 채운다.
// 파워 스펙트럼은 단측(single-sided)으로 DC와 나이퀴스트를 제외한 빈을 두 배로 한다.
func (e *Extractor) computeMFCC(spectrum []complex128, dst []float64) {
	nyquist := e.nfft / 2
	for k := range e.binCount {
		re, im := real(spectrum[k]), imag(spectrum[k])
		p := (re*re + im*im) * e.powerScale
		if k != 0 && k != nyquist {
			p *= 2
		}
		e.powerSpectrum[k] = p
	}

	for m := range e.numFilters {
		energy := 0.0
		filter := e.filterBank[m]
		for k := e.filterStarts[m]; k < e.filterEnds[m]; k++ {
			energy += filter[k] * e.powerSpectrum[k]
		}
		if energy < e.energyFloor {
			e.filtered[m] = e.logEnergyFloor
		} else {
			e.filtered[m] = math.Log(energy)
		}
	}

	for c := range e.numCoefficients {
		sum := 0.0
		row := e.dctMatrix[c]
		for m, v := range e.filtered {
			sum += row[m] * v
		}
		dst[c] = sum
	}
}
