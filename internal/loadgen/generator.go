package loadgen

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"github.com/okian/trialeval/internal/domain/model"
)

// Submission is the JSON body sent to POST /submissions.
type Submission = model.Envelope

// Built-in catalog task ids.
const (
	taskDataEntry    = "trial-data-entry"
	taskContent      = "trial-content"
	taskOrganization = "trial-organization"
)

var (
	firstNames = []string{"Asha", "Ravi", "Meera", "Arjun", "Fatima", "Priya", "Vikram", "Kiran"}
	lastNames  = []string{"Rao", "Kumar", "Iyer", "Nair", "Sheikh", "Das", "Patel", "Singh"}
	cities     = []string{"Pune", "Chennai", "Bengaluru", "Delhi", "Hyderabad", "Kochi", "Kolkata"}
	companies  = []string{"Acme Traders", "Blue Exports", "Sunrise Foods", "Nova Textiles"}
	sentences  = []string{
		"This bottle keeps water cold for a full day.",
		"The steel body is tough and easy to clean.",
		"Customers love the leak proof lid and the great quality.",
		"It is the best value for hikers, students and office workers.",
		"Every purchase includes a lifetime warranty.",
		"The slim design fits any bag or cup holder.",
	}
)

// generator builds random submissions. Quality is drawn per submission so
// some workers pass and others do not.
type generator struct {
	rng     *rand.Rand
	workers []string
}

func newGenerator(seed uint64, workers int) *generator {
	g := &generator{rng: rand.New(rand.NewPCG(seed, seed>>1|1)), workers: make([]string, workers)}
	for i := range g.workers {
		g.workers[i] = "worker-" + uuid.NewString()[:8]
	}
	return g
}

// generate returns n submissions spread over the generator's workers.
func (g *generator) generate(n int) []Submission {
	out := make([]Submission, n)
	for i := range out {
		out[i] = g.one(g.workers[i%len(g.workers)])
	}
	return out
}

func (g *generator) one(workerID string) Submission {
	s := Submission{
		SubmissionID: uuid.NewString(),
		WorkerID:     workerID,
		MinutesSpent: 5 + g.rng.Float64()*40,
	}
	quality := g.rng.Float64()
	switch g.rng.IntN(3) {
	case 0:
		s.TaskID = taskDataEntry
		s.Fields = g.slots("entry", 8, quality, "city")
	case 1:
		s.TaskID = taskOrganization
		s.Fields = g.slots("contact", 5, quality, "company")
	default:
		s.TaskID = taskContent
		s.Text = g.text(quality)
	}
	return s
}

// slots fills count form slots; higher quality fills more of them well.
func (g *generator) slots(prefix string, count int, quality float64, fourth string) map[string]any {
	fields := make(map[string]any)
	for i := 0; i < count; i++ {
		if g.rng.Float64() > quality+0.2 {
			continue
		}
		first := firstNames[g.rng.IntN(len(firstNames))]
		last := lastNames[g.rng.IntN(len(lastNames))]
		name := first + " " + last
		email := strings.ToLower(first) + "@example.com"
		phone := fmt.Sprintf("9%09d", g.rng.IntN(1_000_000_000))
		if g.rng.Float64() > quality {
			// Sloppy entry.
			name = strings.ToLower(name)
			email = strings.ToLower(first) + "@example"
			phone = phone[:6]
		}
		last4 := cities[g.rng.IntN(len(cities))]
		if fourth == "company" {
			last4 = companies[g.rng.IntN(len(companies))]
		}
		key := func(f string) string { return fmt.Sprintf("%s_%d_%s", prefix, i, f) }
		fields[key("name")] = name
		fields[key("phone")] = phone
		fields[key("email")] = email
		fields[key(fourth)] = last4
	}
	return fields
}

func (g *generator) text(quality float64) string {
	n := 1 + int(quality*18)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = sentences[g.rng.IntN(len(sentences))]
	}
	return strings.Join(parts, " ")
}
