package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"typingclass/internal/models"
)

// Drives the whole submission flow against a running server: start a
// practice session, then immediately POST a plausible result. Instant
// submissions are expected to bounce off the timing check; the point of
// the harness is to exercise the full pipeline under concurrency and
// report how submissions were classified.

type submitResult struct {
	StatusCode int
	Reason     string
	Duration   time.Duration
	Err        error
}

var hangulNames = []string{"홍길동", "김영희", "박철수", "이민준", "최서연", "정도윤", "강하은", "조지호", "윤수아", "임시우"}

func main() {
	log.Println("Starting submission flow load test")

	baseURL := "http://localhost:8080"
	totalRequests := 500
	numStudents := 10
	concurrentWorkers := 20

	if len(os.Args) > 1 && os.Args[1] == "quick" {
		totalRequests = 50
		concurrentWorkers = 5
		log.Println("QUICK TEST MODE: 50 requests, 5 concurrent workers")
	}

	studentIDs := generateStudentIDs(numStudents)
	modes := []string{"positional", "word", "sentence", "paragraph"}

	requestChan := make(chan string, totalRequests)
	resultChan := make(chan submitResult, totalRequests)

	var wg sync.WaitGroup
	for i := 0; i < concurrentWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for studentID := range requestChan {
				mode := modes[rand.Intn(len(modes))]
				resultChan <- submitOnce(baseURL, studentID, mode)
			}
		}()
	}

	startTime := time.Now()
	for i := 0; i < totalRequests; i++ {
		requestChan <- studentIDs[i%len(studentIDs)]
	}
	close(requestChan)
	wg.Wait()
	close(resultChan)

	printResults(resultChan, totalRequests, time.Since(startTime))

	for _, mode := range modes {
		verifyLeaderboardOrder(baseURL, mode)
	}
}

// verifyLeaderboardOrder checks that the served leaderboard respects the
// documented rank order, including the earlier-submission tie-break.
func verifyLeaderboardOrder(baseURL, mode string) {
	resp, err := http.Get(baseURL + "/api/records/top?mode=" + mode + "&limit=100")
	if err != nil {
		log.Printf("leaderboard check for %s failed: %v", mode, err)
		return
	}
	defer resp.Body.Close()

	var body struct {
		Records []models.Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		log.Printf("leaderboard check for %s failed: %v", mode, err)
		return
	}

	for i := 1; i < len(body.Records); i++ {
		if models.RankLess(body.Records[i], body.Records[i-1]) {
			log.Printf("ORDER VIOLATION in %s leaderboard: record %d outranks record %d",
				mode, body.Records[i].ID, body.Records[i-1].ID)
			return
		}
	}
	log.Printf("leaderboard order OK for mode %s (%d records)", mode, len(body.Records))
}

func generateStudentIDs(count int) []string {
	ids := make([]string, count)
	for i := 0; i < count; i++ {
		ids[i] = fmt.Sprintf("%05d %s", 10100+i, hangulNames[i%len(hangulNames)])
	}
	return ids
}

// submitOnce issues a practice session and submits one result through it,
// reusing the session cookie between the two calls.
func submitOnce(baseURL, studentID, mode string) submitResult {
	startTime := time.Now()

	jar, err := cookiejar.New(nil)
	if err != nil {
		return submitResult{Err: err}
	}
	client := &http.Client{Jar: jar, Timeout: 30 * time.Second}

	// 1. Start a practice session
	resp, err := client.Post(baseURL+"/api/practice/"+mode, "application/json", nil)
	if err != nil {
		return submitResult{Err: err, Duration: time.Since(startTime)}
	}
	var started struct {
		PracticeToken string `json:"practice_token"`
	}
	err = json.NewDecoder(resp.Body).Decode(&started)
	resp.Body.Close()
	if err != nil {
		return submitResult{Err: err, Duration: time.Since(startTime)}
	}

	// 2. Submit a result that is internally consistent (score matches the
	// wpm/accuracy formula) so only the timing check can reject it.
	wpm := 30 + rand.Intn(40)
	accuracy := 85 + rand.Float64()*15
	frac := accuracy / 100
	score := int(math.Round(float64(wpm) * frac * frac * 100))

	payload, _ := json.Marshal(map[string]interface{}{
		"student_id":     studentID,
		"mode":           mode,
		"wpm":            wpm,
		"accuracy":       accuracy,
		"score":          score,
		"duration_sec":   300,
		"practice_token": started.PracticeToken,
	})

	resp, err = client.Post(baseURL+"/api/records", "application/json", bytes.NewReader(payload))
	duration := time.Since(startTime)
	if err != nil {
		return submitResult{Err: err, Duration: duration}
	}
	defer resp.Body.Close()

	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)

	return submitResult{
		StatusCode: resp.StatusCode,
		Reason:     body.Reason,
		Duration:   duration,
	}
}

func printResults(results <-chan submitResult, total int, elapsed time.Duration) {
	var (
		accepted  int
		errored   int
		byReason  = make(map[string]int)
		totalTime time.Duration
	)

	for r := range results {
		totalTime += r.Duration
		switch {
		case r.Err != nil:
			errored++
		case r.StatusCode == http.StatusCreated:
			accepted++
		default:
			byReason[r.Reason]++
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
	fmt.Println("SUBMISSION FLOW LOAD TEST RESULTS")
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Total Submissions:     %d\n", total)
	fmt.Printf("Accepted:              %d\n", accepted)
	fmt.Printf("Transport Errors:      %d\n", errored)

	reasons := make([]string, 0, len(byReason))
	for reason := range byReason {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Printf("Rejected (%s): %d\n", reason, byReason[reason])
	}

	fmt.Printf("Total Duration:        %v\n", elapsed)
	fmt.Printf("Requests Per Second:   %.2f\n", float64(total)/elapsed.Seconds())
	if total > 0 {
		fmt.Printf("Average Round Trip:    %v\n", totalTime/time.Duration(total))
	}
}
