package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/SAP-F-2025/exam-engine/internal/models"
	"github.com/SAP-F-2025/exam-engine/internal/repositories"
)

// fakeStore is an in-memory Repository. Transactions are serialized and
// rolled back through an undo log, which is enough to model the guards the
// services rely on: one open attempt per student and conditional closes.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	nextID      uint
	packs       map[uint]models.Pack
	questions   map[uint]models.Question
	exams       map[uint]models.Exam
	attempts    map[uint]models.Attempt
	tempAnswers map[[2]uint]models.TempAnswer
	activity    []models.ActivityLog

	listOpenErr error
	commitErr   error
	closeErr    map[uint]error
	closeCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		packs:       make(map[uint]models.Pack),
		questions:   make(map[uint]models.Question),
		exams:       make(map[uint]models.Exam),
		attempts:    make(map[uint]models.Attempt),
		tempAnswers: make(map[[2]uint]models.TempAnswer),
		closeErr:    make(map[uint]error),
	}
}

func (s *fakeStore) id() uint {
	s.nextID++
	return s.nextID
}

func (s *fakeStore) repo() *fakeRepo {
	return &fakeRepo{s: s}
}

// ===== SEEDING =====

func (s *fakeStore) addPack(name string) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	s.packs[id] = models.Pack{ID: id, Name: name}
	return id
}

// addQuestion appends a question whose answers are flagged by correct.
func (s *fakeStore) addQuestion(packID uint, rank int, correct ...bool) models.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := models.Question{ID: s.id(), PackID: packID, Rank: rank, Content: fmt.Sprintf("question %d", rank)}
	for i, c := range correct {
		q.Answers = append(q.Answers, models.Answer{ID: s.id(), QuestionID: q.ID, Content: fmt.Sprintf("option %d", i+1), IsCorrect: c})
	}
	s.questions[q.ID] = q
	return q
}

func (s *fakeStore) addExam(exam models.Exam) models.Exam {
	s.mu.Lock()
	defer s.mu.Unlock()
	exam.ID = s.id()
	s.exams[exam.ID] = exam
	return exam
}

func (s *fakeStore) attempt(id uint) models.Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[id]
}

func (s *fakeStore) ranks(packID uint) []models.QuestionRank {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rankList(packID)
}

func (s *fakeStore) packQuestions(packID uint) []models.Question {
	var out []models.Question
	for _, q := range s.questions {
		if q.PackID == packID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *fakeStore) rankList(packID uint) []models.QuestionRank {
	qs := s.packQuestions(packID)
	ranks := make([]models.QuestionRank, 0, len(qs))
	for _, q := range qs {
		ranks = append(ranks, models.QuestionRank{QuestionID: q.ID, Rank: q.Rank})
	}
	return ranks
}

func cloneQuestion(q models.Question) *models.Question {
	q.Answers = slices.Clone(q.Answers)
	return &q
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, repositories.ErrNotFound)
}

// ===== REPOSITORY =====

type fakeRepo struct {
	s    *fakeStore
	undo *[]func()
}

// record registers an undo step while bound to a transaction. Callers hold
// s.mu.
func (r *fakeRepo) record(fn func()) {
	if r.undo != nil {
		*r.undo = append(*r.undo, fn)
	}
}

func (r *fakeRepo) Pack() repositories.PackRepository             { return fakePacks{r} }
func (r *fakeRepo) Question() repositories.QuestionRepository     { return fakeQuestions{r} }
func (r *fakeRepo) Exam() repositories.ExamRepository             { return fakeExams{r} }
func (r *fakeRepo) Attempt() repositories.AttemptRepository       { return fakeAttempts{r} }
func (r *fakeRepo) TempAnswer() repositories.TempAnswerRepository { return fakeTempAnswers{r} }
func (r *fakeRepo) ActivityLog() repositories.ActivityLogRepository {
	return fakeActivity{r}
}

func (r *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()

	var undo []func()
	tx := &fakeRepo{s: r.s, undo: &undo}
	err := fn(tx)
	if err == nil {
		err = r.s.commitErr
	}
	if err != nil {
		r.s.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		r.s.mu.Unlock()
		return err
	}
	return nil
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }
func (r *fakeRepo) Close() error                   { return nil }

type fakeRepoManager struct {
	repo      *fakeRepo
	healthErr error
	shutdown  bool
}

func (m *fakeRepoManager) Initialize() error                      { return nil }
func (m *fakeRepoManager) GetRepository() repositories.Repository { return m.repo }
func (m *fakeRepoManager) HealthCheck(ctx context.Context) error  { return m.healthErr }

func (m *fakeRepoManager) Shutdown(ctx context.Context) error {
	m.shutdown = true
	return nil
}

// ===== PACKS =====

type fakePacks struct{ r *fakeRepo }

func (f fakePacks) GetByID(ctx context.Context, id uint) (*models.Pack, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	p, ok := f.r.s.packs[id]
	if !ok {
		return nil, notFound("get pack")
	}
	return &p, nil
}

// ===== QUESTIONS =====

type fakeQuestions struct{ r *fakeRepo }

func (f fakeQuestions) Create(ctx context.Context, q *models.Question) error {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	q.ID = s.id()
	q.CreatedAt = time.Now()
	for i := range q.Answers {
		q.Answers[i].ID = s.id()
		q.Answers[i].QuestionID = q.ID
	}
	s.questions[q.ID] = *cloneQuestion(*q)

	id := q.ID
	f.r.record(func() { delete(s.questions, id) })
	return nil
}

func (f fakeQuestions) Delete(ctx context.Context, packID, id uint) error {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok || q.PackID != packID {
		return notFound("delete question")
	}
	delete(s.questions, id)

	removed := make(map[[2]uint]models.TempAnswer)
	for key, ta := range s.tempAnswers {
		if ta.QuestionID == id {
			removed[key] = ta
			delete(s.tempAnswers, key)
		}
	}
	f.r.record(func() {
		s.questions[id] = q
		for key, ta := range removed {
			s.tempAnswers[key] = ta
		}
	})
	return nil
}

func (f fakeQuestions) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	q, ok := f.r.s.questions[id]
	if !ok {
		return nil, notFound("get question")
	}
	return cloneQuestion(q), nil
}

func (f fakeQuestions) ListByPack(ctx context.Context, packID uint) ([]models.Question, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	qs := f.r.s.packQuestions(packID)
	for i := range qs {
		qs[i] = *cloneQuestion(qs[i])
	}
	return qs, nil
}

func (f fakeQuestions) GetByRank(ctx context.Context, packID uint, rank int) (*models.Question, error) {
	qs, err := f.ListAtRankForUpdate(ctx, packID, rank)
	if err != nil {
		return nil, err
	}
	switch len(qs) {
	case 0:
		return nil, notFound("get question by rank")
	case 1:
		return &qs[0], nil
	default:
		return nil, repositories.ErrDuplicateRank
	}
}

func (f fakeQuestions) GetForUpdate(ctx context.Context, packID, id uint) (*models.Question, error) {
	q, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if q.PackID != packID {
		return nil, notFound("get question")
	}
	return q, nil
}

func (f fakeQuestions) ListAtRankForUpdate(ctx context.Context, packID uint, rank int) ([]models.Question, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	var out []models.Question
	for _, q := range f.r.s.packQuestions(packID) {
		if q.Rank == rank {
			out = append(out, *cloneQuestion(q))
		}
	}
	return out, nil
}

func (f fakeQuestions) SetRank(ctx context.Context, id uint, rank int) error {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.questions[id]
	if !ok {
		return notFound("set rank")
	}
	prev := q.Rank
	q.Rank = rank
	s.questions[id] = q
	f.r.record(func() {
		q := s.questions[id]
		q.Rank = prev
		s.questions[id] = q
	})
	return nil
}

func (f fakeQuestions) MaxRank(ctx context.Context, packID uint) (int, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	highest := 0
	for _, q := range f.r.s.packQuestions(packID) {
		if q.Rank > highest {
			highest = q.Rank
		}
	}
	return highest, nil
}

func (f fakeQuestions) CountByPack(ctx context.Context, packID uint) (int64, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	return int64(len(f.r.s.packQuestions(packID))), nil
}

func (f fakeQuestions) ListRanks(ctx context.Context, packID uint) ([]models.QuestionRank, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	return f.r.s.rankList(packID), nil
}

func (f fakeQuestions) Reindex(ctx context.Context, packID uint) (int64, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var changed int64
	for i, q := range s.packQuestions(packID) {
		if q.Rank == i+1 {
			continue
		}
		id, prev := q.ID, q.Rank
		q.Rank = i + 1
		s.questions[id] = q
		changed++
		f.r.record(func() {
			q := s.questions[id]
			q.Rank = prev
			s.questions[id] = q
		})
	}
	return changed, nil
}

// ===== EXAMS =====

type fakeExams struct{ r *fakeRepo }

func (f fakeExams) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	e, ok := f.r.s.exams[id]
	if !ok {
		return nil, notFound("get exam")
	}
	return &e, nil
}

func (f fakeExams) GetCachedByID(ctx context.Context, id uint) (*models.Exam, error) {
	return f.GetByID(ctx, id)
}

func (f fakeExams) ListSummaries(ctx context.Context, includeArchived bool) ([]models.ExamSummary, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ExamSummary
	for _, e := range s.exams {
		if e.Archived && !includeArchived {
			continue
		}
		summary := models.ExamSummary{
			Exam:          e,
			PackName:      s.packs[e.PackID].Name,
			QuestionCount: int64(len(s.packQuestions(e.PackID))),
		}
		for _, a := range s.attempts {
			if a.ExamID == e.ID {
				summary.AttemptCount++
			}
		}
		out = append(out, summary)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeExams) ToggleArchived(ctx context.Context, id uint) (bool, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return false, notFound("toggle archived")
	}
	e.Archived = !e.Archived
	s.exams[id] = e
	return e.Archived, nil
}

// ===== ATTEMPTS =====

type fakeAttempts struct{ r *fakeRepo }

func (f fakeAttempts) Create(ctx context.Context, a *models.Attempt) error {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.attempts {
		if other.StudentID == a.StudentID && other.IsOpen() {
			return repositories.ErrOpenAttemptExists
		}
	}
	a.ID = s.id()
	s.attempts[a.ID] = *a
	id := a.ID
	f.r.record(func() { delete(s.attempts, id) })
	return nil
}

func (f fakeAttempts) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	a, ok := f.r.s.attempts[id]
	if !ok {
		return nil, notFound("get attempt")
	}
	return &a, nil
}

func (f fakeAttempts) LockOpen(ctx context.Context, id uint) (*models.Attempt, error) {
	a, err := f.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !a.IsOpen() {
		return nil, notFound("lock attempt")
	}
	return a, nil
}

func (f fakeAttempts) filter(keep func(models.Attempt) bool) []models.Attempt {
	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	var out []models.Attempt
	for _, a := range f.r.s.attempts {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f fakeAttempts) ListOpenByStudent(ctx context.Context, studentID string) ([]models.Attempt, error) {
	return f.filter(func(a models.Attempt) bool { return a.StudentID == studentID && a.IsOpen() }), nil
}

func (f fakeAttempts) ListByStudent(ctx context.Context, studentID string) ([]models.Attempt, error) {
	return f.filter(func(a models.Attempt) bool { return a.StudentID == studentID }), nil
}

func (f fakeAttempts) ListByExam(ctx context.Context, examID uint) ([]models.Attempt, error) {
	return f.filter(func(a models.Attempt) bool { return a.ExamID == examID }), nil
}

func (f fakeAttempts) CountByStudentAndExam(ctx context.Context, studentID string, examID uint) (int64, error) {
	return int64(len(f.filter(func(a models.Attempt) bool { return a.StudentID == studentID && a.ExamID == examID }))), nil
}

func (f fakeAttempts) CountByStudentPerExam(ctx context.Context, studentID string) (map[uint]int64, error) {
	counts := make(map[uint]int64)
	for _, a := range f.filter(func(a models.Attempt) bool { return a.StudentID == studentID }) {
		counts[a.ExamID]++
	}
	return counts, nil
}

func (f fakeAttempts) UpdateCurrentQuestion(ctx context.Context, id uint, rank int) (bool, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[id]
	if !ok || !a.IsOpen() {
		return false, nil
	}
	prev := a.CurrentQuestion
	a.CurrentQuestion = rank
	s.attempts[id] = a
	f.r.record(func() {
		a := s.attempts[id]
		a.CurrentQuestion = prev
		s.attempts[id] = a
	})
	return true, nil
}

func (f fakeAttempts) CloseIfOpen(ctx context.Context, id uint, endDt time.Time, reason models.CloseReason) (bool, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if err := s.closeErr[id]; err != nil {
		return false, err
	}
	a, ok := s.attempts[id]
	if !ok || !a.IsOpen() {
		return false, nil
	}
	a.EndDt = &endDt
	a.CloseReason = &reason
	s.attempts[id] = a
	f.r.record(func() {
		a := s.attempts[id]
		a.EndDt = nil
		a.CloseReason = nil
		s.attempts[id] = a
	})
	return true, nil
}

func (f fakeAttempts) ListOpenWithExam(ctx context.Context) ([]models.OpenAttempt, error) {
	if err := f.r.s.listOpenErr; err != nil {
		return nil, err
	}
	open := f.filter(func(a models.Attempt) bool { return a.IsOpen() })

	f.r.s.mu.Lock()
	defer f.r.s.mu.Unlock()
	rows := make([]models.OpenAttempt, 0, len(open))
	for _, a := range open {
		e := f.r.s.exams[a.ExamID]
		rows = append(rows, models.OpenAttempt{
			AttemptID:        a.ID,
			StudentID:        a.StudentID,
			ExamID:           a.ExamID,
			StartDt:          a.StartDt,
			ExamStartDt:      e.StartDt,
			ExamEndDt:        e.EndDt,
			TimeLimitSeconds: e.TimeLimitSeconds,
		})
	}
	return rows, nil
}

func (f fakeAttempts) QuestionTallies(ctx context.Context, attemptID uint) ([]models.QuestionTally, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.QuestionTally
	for _, ta := range s.tempAnswers {
		if ta.AttemptID != attemptID {
			continue
		}
		q, ok := s.questions[ta.QuestionID]
		if !ok || len(q.Answers) == 0 {
			continue
		}
		tally := models.QuestionTally{QuestionID: q.ID}
		for _, an := range q.Answers {
			chosen := slices.Contains(ta.ChosenAnswers, int64(an.ID))
			switch {
			case an.IsCorrect && chosen:
				tally.ChosenCorrect++
				tally.TotalCorrect++
			case an.IsCorrect:
				tally.TotalCorrect++
			case chosen:
				tally.ChosenIncorrect++
			}
		}
		out = append(out, tally)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// ===== TEMP ANSWERS =====

type fakeTempAnswers struct{ r *fakeRepo }

func (f fakeTempAnswers) Upsert(ctx context.Context, answer *models.TempAnswer) error {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]uint{answer.AttemptID, answer.QuestionID}
	prev, existed := s.tempAnswers[key]
	stored := *answer
	stored.ChosenAnswers = slices.Clone(answer.ChosenAnswers)
	if stored.ChosenAnswers == nil {
		stored.ChosenAnswers = pq.Int64Array{}
	}
	s.tempAnswers[key] = stored
	f.r.record(func() {
		if existed {
			s.tempAnswers[key] = prev
		} else {
			delete(s.tempAnswers, key)
		}
	})
	return nil
}

func (f fakeTempAnswers) ListByAttempt(ctx context.Context, attemptID uint) ([]models.TempAnswer, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TempAnswer
	for _, ta := range s.tempAnswers {
		if ta.AttemptID == attemptID {
			out = append(out, ta)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

// ===== ACTIVITY =====

type fakeActivity struct{ r *fakeRepo }

func (f fakeActivity) Create(ctx context.Context, entry *models.ActivityLog) error {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.id()
	s.activity = append(s.activity, *entry)
	return nil
}

func (f fakeActivity) ListRecent(ctx context.Context, limit int) ([]models.ActivityLog, error) {
	s := f.r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	out := slices.Clone(s.activity)
	slices.Reverse(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
