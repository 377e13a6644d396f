// Package scheduler dispara los procesos programados del motor (facturación
// mensual, intereses, vencimientos, cortes y retención de bitácora).
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownJob = errors.New("scheduler: tarea desconocida")
	ErrJobRunning = errors.New("scheduler: la tarea ya está en ejecución")
)

// Handler trabajo de una tarea. Recibe el ctx del scheduler (o el de RunNow).
type Handler func(ctx context.Context) error

// Job tarea programada con expresión cron de 5 campos (o descriptor @daily, @every 1h...).
type Job struct {
	Name    string
	Spec    string
	Handler Handler
}

// JobInfo estado visible de una tarea.
type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	Next    time.Time `json:"next"`
	Running bool      `json:"running"`
}

// entry implementa cron.Job. cron la envuelve con Recover y SkipIfStillRunning,
// así que disparos programados y manuales comparten el mismo candado.
type entry struct {
	s       *Scheduler
	job     Job
	id      cron.EntryID
	running atomic.Bool
	manual  atomic.Pointer[context.Context]

	mu   sync.Mutex
	runs uint64
	last error
}

// Scheduler tareas sobre robfig/cron en la zona horaria de facturación.
type Scheduler struct {
	log     zerolog.Logger
	loc     *time.Location
	cron    *cron.Cron
	entries []*entry
	byName  map[string]*entry

	base atomic.Pointer[context.Context]
}

// New valida las expresiones y construye el scheduler. loc nil = time.Local.
func New(log zerolog.Logger, loc *time.Location, jobs ...Job) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	clog := cronLogger{log: log}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	s := &Scheduler{log: log, loc: loc, cron: c, byName: make(map[string]*entry, len(jobs))}
	for _, j := range jobs {
		if j.Name == "" || j.Handler == nil {
			return nil, fmt.Errorf("scheduler: tarea %q sin nombre o sin handler", j.Name)
		}
		if _, dup := s.byName[j.Name]; dup {
			return nil, fmt.Errorf("scheduler: tarea %q duplicada", j.Name)
		}
		e := &entry{s: s, job: j}
		id, err := s.cron.AddJob(j.Spec, e)
		if err != nil {
			return nil, fmt.Errorf("scheduler: expresión %q de %s: %w", j.Spec, j.Name, err)
		}
		e.id = id
		s.entries = append(s.entries, e)
		s.byName[j.Name] = e
	}
	return s, nil
}

// Run bloquea hasta que ctx se cancele y espera a que terminen las tareas en curso.
func (s *Scheduler) Run(ctx context.Context) error {
	s.base.Store(&ctx)
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.entries)).Str("tz", s.loc.String()).Msg("scheduler iniciado")

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("scheduler detenido")
	return nil
}

// RunNow ejecuta la tarea de inmediato por la misma cadena de cron y espera a que
// termine. Si ya está corriendo retorna ErrJobRunning.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	e, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	e.mu.Lock()
	before := e.runs
	e.mu.Unlock()

	e.manual.Store(&ctx)
	s.cron.Entry(e.id).WrappedJob.Run()
	e.manual.Store(nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.runs == before {
		return ErrJobRunning
	}
	return e.last
}

// Run cron.Job.
func (e *entry) Run() {
	ctx := context.Background()
	if p := e.manual.Swap(nil); p != nil {
		ctx = *p
	} else if p := e.s.base.Load(); p != nil {
		ctx = *p
	}

	e.running.Store(true)
	err := e.s.execute(ctx, e.job)
	e.running.Store(false)

	e.mu.Lock()
	e.runs++
	e.last = err
	e.mu.Unlock()
}

// execute corre el handler. Un pánico se convierte en error para que RunNow lo
// reporte; cron.Recover queda como red del goroutine de cron.
func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	log := s.log.With().Str("job", job.Name).Logger()
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("pánico en tarea programada")
			err = fmt.Errorf("scheduler: pánico en %s: %v", job.Name, r)
		}
	}()

	log.Info().Msg("tarea iniciada")
	err = job.Handler(ctx)
	if err != nil {
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("tarea falló")
		return err
	}
	log.Info().Dur("duration", time.Since(start)).Msg("tarea completada")
	return nil
}

// Jobs tareas registradas con su próximo disparo.
func (s *Scheduler) Jobs() []JobInfo {
	now := time.Now().In(s.loc)
	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		ce := s.cron.Entry(e.id)
		next := ce.Next
		if next.IsZero() {
			// Sin Start, cron aún no calculó el siguiente disparo.
			next = ce.Schedule.Next(now)
		}
		out = append(out, JobInfo{
			Name:    e.job.Name,
			Spec:    e.job.Spec,
			Next:    next.In(s.loc),
			Running: e.running.Load(),
		})
	}
	return out
}

// cronLogger adapta zerolog a cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
