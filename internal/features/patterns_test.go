package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPatternSet_RejectsInvalidExpr(t *testing.T) {
	_, err := NewPatternSet(TagSkip, `[unclosed`)
	assert.Error(t, err)
}

func TestPatternSet_FirstMatchOrder(t *testing.T) {
	s, err := NewPatternSet(TagSkip, `bbb`, `aaa`)
	require.NoError(t, err)

	p, ok := s.FirstMatch("aaa bbb")
	require.True(t, ok)
	assert.Equal(t, "bbb", p.Name)
}

func TestPatternSet_NilSafe(t *testing.T) {
	var s *PatternSet
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Matches("anything"))
	s.Each(func(Pattern) bool { t.Fatal("should not iterate"); return false })
}

func TestFigureNumberPatterns(t *testing.T) {
	set := DefaultFigureNumberPatterns()

	matching := []string{
		"図2-1 システム構成",
		"図 3.4 配管系統",
		"図5 外観",
		"図表 1-2 比較",
		"表 4-1 仕様一覧",
		"Fig. 2-3 layout",
		"Figure 1.1 overview",
	}
	for _, s := range matching {
		assert.True(t, set.Matches(s), "expected match: %s", s)
	}

	assert.False(t, set.Matches("この装置の概要を説明する"))
	assert.False(t, set.Matches("see the figure below"))
}

func TestFigureReferencePatterns(t *testing.T) {
	set := DefaultFigureReferencePatterns()

	matching := []string{
		"図2-1の通り接続する",
		"図 3.4 を参照してください",
		"詳細は図1-2に示す",
		"前述の図3のように",
		"については図 5を確認",
		"see Figure 3 for details",
		"as shown in figure 2",
	}
	for _, s := range matching {
		assert.True(t, set.Matches(s), "expected match: %s", s)
	}

	// a bare caption is not a back-reference
	assert.False(t, set.Matches("図2-1 システム構成"))
}

func TestSkipPatterns(t *testing.T) {
	set := DefaultSkipPatterns()

	matching := []string{
		"目次",
		"目 次",
		"索引",
		"はじめに",
		"まえがき",
		"Table of Contents",
		"index",
		"Preface",
	}
	for _, s := range matching {
		assert.True(t, set.Matches(s), "expected match: %s", s)
	}

	assert.False(t, set.Matches("第1章 概要"))
}

func TestForceImageKeywords(t *testing.T) {
	set := DefaultForceImageKeywords()

	for _, s := range []string{"処理フロー図", "ブロック図を以下に示す", "配線図", "回路図"} {
		assert.True(t, set.Matches(s), "expected match: %s", s)
	}
	assert.False(t, set.Matches("処理の流れ"))
}

func TestStepPattern(t *testing.T) {
	set := DefaultStepPattern()

	for _, s := range []string{"STEP 1", "ステップ2", "手順 3", "Phase 1", "工程①"} {
		assert.True(t, set.Matches(s), "expected match: %s", s)
	}
	assert.False(t, set.Matches("次の手順に従う"))
}

func TestNumberedListPattern(t *testing.T) {
	set := DefaultNumberedListPattern()

	for _, s := range []string{"① 電源を入れる", "1. 準備", "3. 確認する"} {
		assert.True(t, set.Matches(s), "expected match: %s", s)
	}
	assert.False(t, set.Matches("番号なしの文章"))
}

func TestCaptionContexts(t *testing.T) {
	contexts := captionContexts(`図\s*\d+[-\.]\d+`)
	require.Len(t, contexts, 3)

	matchAny := func(text string) bool {
		for _, re := range contexts {
			if re.MatchString(text) {
				return true
			}
		}
		return false
	}

	assert.True(t, matchAny("図2-1 システム構成\n本文が続く"), "line-start caption")
	assert.True(t, matchAny("前の行\n図2-1\n次の行"), "isolated line")
	assert.True(t, matchAny("      図2-1 構成"), "indented caption")
	assert.False(t, matchAny("この構成は図2-1のようになっている"), "mid-sentence reference")
}
