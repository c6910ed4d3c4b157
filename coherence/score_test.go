package coherence

import "testing"

func scenarioSet(cat, bear, base, bull Scenario) map[string]Scenario {
	cat.Name, bear.Name, base.Name, bull.Name = Catastrophic, Bear, Base, Bull
	return map[string]Scenario{
		Catastrophic: cat,
		Bear:         bear,
		Base:         base,
		Bull:         bull,
	}
}

func TestScoreCoherence(t *testing.T) {
	t1 := func(v float64) *float64 { return &v }

	tests := []struct {
		name      string
		scenarios map[string]Scenario
		sig       signals
		want      float64
	}{
		{
			name: "consistent output scores 100",
			scenarios: scenarioSet(
				Scenario{Probability: 30},
				Scenario{Probability: 30},
				Scenario{Probability: 30, Multiple: 2},
				Scenario{Probability: 10, Multiple: 4},
			),
			sig:  signals{Scepticism: 75},
			want: 100,
		},
		{
			name: "base probability just past the limit",
			scenarios: scenarioSet(
				Scenario{Probability: 25},
				Scenario{Probability: 30},
				Scenario{Probability: 35, Multiple: 2},
				Scenario{Probability: 10, Multiple: 4},
			),
			sig:  signals{Scepticism: 75},
			want: 95, // base 35 is 5 past the limit of 30
		},
		{
			name: "optimism gates closed below scepticism 70",
			scenarios: scenarioSet(
				Scenario{Probability: 5},
				Scenario{Probability: 10},
				Scenario{Probability: 45, Multiple: 3},
				Scenario{Probability: 40, Multiple: 10},
			),
			sig:  signals{Scepticism: 70},
			want: 100,
		},
		{
			name: "high bull probability under high scepticism",
			scenarios: scenarioSet(
				Scenario{Probability: 30},
				Scenario{Probability: 20},
				Scenario{Probability: 20},
				Scenario{Probability: 30, Multiple: 8},
			),
			sig:  signals{Scepticism: 75},
			want: 80, // (30-20)*2 = 20 off
		},
		{
			name: "bull penalty capped at 30",
			scenarios: scenarioSet(
				Scenario{Probability: 40},
				Scenario{Probability: 10},
				Scenario{Probability: 10},
				Scenario{Probability: 40, Multiple: 8},
			),
			sig:  signals{Scepticism: 75},
			want: 70, // raw (40-20)*2 = 40, capped
		},
		{
			name: "low catastrophic under extreme scepticism",
			scenarios: scenarioSet(
				Scenario{Probability: 10},
				Scenario{Probability: 40},
				Scenario{Probability: 30},
				Scenario{Probability: 20, Multiple: 5},
			),
			sig:  signals{Scepticism: 85},
			want: 80, // 30-10 = 20 off
		},
		{
			name: "stacked penalties at scepticism 88",
			scenarios: scenarioSet(
				Scenario{Probability: 10},
				Scenario{Probability: 20},
				Scenario{Probability: 40, Multiple: 4.5},
				Scenario{Probability: 30, Multiple: 8},
			),
			sig:  signals{Scepticism: 88},
			want: 50, // bull 20 + base 10 + cat 20
		},
		{
			name: "weak tier-1 with rich multiples",
			scenarios: scenarioSet(
				Scenario{Probability: 25},
				Scenario{Probability: 30},
				Scenario{Probability: 30, Multiple: 4},
				Scenario{Probability: 15, Multiple: 10},
			),
			sig:  signals{Scepticism: 30, T1Average: t1(35)},
			want: 75, // bull mult 15 + base mult 10
		},
		{
			name: "tier-1 average exactly at limit is not weak",
			scenarios: scenarioSet(
				Scenario{Probability: 25},
				Scenario{Probability: 30},
				Scenario{Probability: 30, Multiple: 4},
				Scenario{Probability: 15, Multiple: 10},
			),
			sig:  signals{Scepticism: 30, T1Average: t1(40)},
			want: 100,
		},
		{
			name: "critical red flags against low catastrophic",
			scenarios: scenarioSet(
				Scenario{Probability: 10},
				Scenario{Probability: 40},
				Scenario{Probability: 35, Multiple: 2},
				Scenario{Probability: 15, Multiple: 4},
			),
			sig:  signals{Scepticism: 40, CriticalRedFlags: 5},
			want: 85, // 5*3 = 15 off
		},
		{
			name: "red flag penalty capped at 20",
			scenarios: scenarioSet(
				Scenario{Probability: 10},
				Scenario{Probability: 40},
				Scenario{Probability: 35, Multiple: 2},
				Scenario{Probability: 15, Multiple: 4},
			),
			sig:  signals{Scepticism: 40, CriticalRedFlags: 9},
			want: 80, // raw 27, capped
		},
		{
			name: "total floored at zero",
			scenarios: scenarioSet(
				Scenario{Probability: 0},
				Scenario{Probability: 5},
				Scenario{Probability: 45, Multiple: 6},
				Scenario{Probability: 50, Multiple: 12},
			),
			sig:  signals{Scepticism: 95, T1Average: t1(20), CriticalRedFlags: 8},
			want: 0, // 30+15+25+15+10+20 = 115 of penalties
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreCoherence(tt.scenarios, tt.sig); got != tt.want {
				t.Errorf("scoreCoherence() = %g, want %g", got, tt.want)
			}
		})
	}
}
