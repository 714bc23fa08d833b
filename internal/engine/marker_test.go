package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutcome(t *testing.T) {
	tests := []struct {
		name   string
		stdout []string
		stderr []string
		want   Result
	}{
		{
			name:   "success line",
			stdout: []string{"[OK] Fichier cree", "SUCCESS:educ_2022.zip"},
			want:   Result{Success: true, Filename: "educ_2022.zip"},
		},
		{
			name:   "success despite stderr noise",
			stdout: []string{"SUCCESS:educ_2022.zip  "},
			stderr: []string{"FutureWarning: pandas"},
			want:   Result{Success: true, Filename: "educ_2022.zip"},
		},
		{
			name:   "last success wins and path is stripped",
			stdout: []string{"SUCCESS:first.zip", "SUCCESS:/srv/output/second.zip"},
			want:   Result{Success: true, Filename: "second.zip"},
		},
		{
			name:   "empty success is a failure",
			stdout: []string{"SUCCESS:"},
			want:   Result{Error: "engine reported success without a file name"},
		},
		{
			name:   "stderr first",
			stdout: []string{"ERROR:Generation failed"},
			stderr: []string{"Traceback (most recent call last):", "KeyError: 'educ'"},
			want:   Result{Error: "Traceback (most recent call last):\nKeyError: 'educ'"},
		},
		{
			name:   "error marker when stderr is empty",
			stdout: []string{"loading", "ERROR:Generation failed"},
			want:   Result{Error: "Generation failed"},
		},
		{
			name:   "raw stdout",
			stdout: []string{"something odd happened"},
			want:   Result{Error: "something odd happened"},
		},
		{
			name: "nothing at all",
			want: Result{Error: "Unknown error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseOutcome(tt.stdout, tt.stderr))
		})
	}
}

func TestParseYears(t *testing.T) {
	years, err := ParseYears([]string{"[WARN] Erreur parsing x.csv", "YEARS:[2018, 2019]"})
	require.NoError(t, err)
	assert.Equal(t, []int{2018, 2019}, years)

	years, err = ParseYears([]string{"YEARS:[]"})
	require.NoError(t, err)
	assert.NotNil(t, years)
	assert.Empty(t, years)

	_, err = ParseYears([]string{"YEARS:[2018,"})
	assert.Error(t, err)

	_, err = ParseYears([]string{"no marker"})
	assert.ErrorIs(t, err, ErrNoYears)
}
