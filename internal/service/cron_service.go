package service

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/quantbots/industrymapapi/internal/config"
	"github.com/quantbots/industrymapapi/pkg/utils/zaplogger"
)

// CronService is the service for the cron jobs
type CronService struct {
	cfg              *config.Config
	db               *gorm.DB
	redisClient      *redis.Client
	c                *cron.Cron
	taxonomyService  *TaxonomyService
	securityService  *SecurityService
	reconcileService *ReconcileService
}

// NewCronService creates a new CronService
func NewCronService(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *CronService {
	return &CronService{
		cfg:              cfg,
		db:               db,
		redisClient:      redisClient,
		c:                cron.New(),
		taxonomyService:  NewTaxonomyService(db, cfg.TaxonomySourceURL),
		securityService:  NewSecurityService(db, cfg.SecuritySourceURL),
		reconcileService: NewReconcileService(cfg, db, redisClient),
	}
}

// Start starts the cron service
func (cs *CronService) Start() {
	zaplogger.Info("Initializing CronService")

	// ------------------------------------------------------------
	// SCHEDULED jobs
	// ------------------------------------------------------------
	cs.addScheduledJob("Taxonomy UPDATE Job", cs.taxonomyUpdateJob, "30 7 * * 1-5")    // Once at 07:30am, Mon-Fri
	cs.addScheduledJob("Securities UPDATE Job", cs.securitiesUpdateJob, "35 7 * * 1-5") // Once at 07:35am, Mon-Fri
	cs.addScheduledJob("Industry RECONCILE Job", cs.reconcileJob, "0 8 * * 1-5")        // Once at 08:00am, Mon-Fri

	// ------------------------------------------------------------
	// STARTUP jobs
	// ------------------------------------------------------------
	cs.addStartupJob("Taxonomy UPDATE Job", cs.taxonomyUpdateJob, 1*time.Second)
	cs.addStartupJob("Securities UPDATE Job", cs.securitiesUpdateJob, 5*time.Second)
	cs.addStartupJob("Industry RECONCILE Job", cs.reconcileJob, 15*time.Second)
	// ------------------------------------------------------------

	cs.c.Start()
}

// addStartupJob adds a startup job to the cron service
func (cs *CronService) addStartupJob(name string, job func(), delay time.Duration) {
	go func() {
		time.Sleep(delay)
		zaplogger.Info("STARTED STARTUP job", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED STARTUP job", zaplogger.Fields{
			"job": name,
		})
	}()
	zaplogger.Info("QUEUED STARTUP job", zaplogger.Fields{
		"job": name,
	})
}

func (cs *CronService) addScheduledJob(name string, job func(), schedule string) {
	_, err := cs.c.AddFunc(schedule, func() {
		zaplogger.Info("STARTED SCHEDULED JOB", zaplogger.Fields{
			"job": name,
		})
		job()
		zaplogger.Info("COMPLETED SCHEDULED JOB", zaplogger.Fields{
			"job": name,
		})
	})
	if err != nil {
		zaplogger.Error("FAILED TO QUEUE SCHEDULED JOB", zaplogger.Fields{
			"job":   name,
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info("QUEUED SCHEDULED job", zaplogger.Fields{
		"job": name,
	})
}

// taxonomyUpdateJob refreshes the industry taxonomy from the primary authority
func (cs *CronService) taxonomyUpdateJob() {
	jobName := "Taxonomy UPDATE Job "

	rowsUpserted, err := cs.taxonomyService.UpdateTaxonomy()
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"rows_upserted": strconv.FormatInt(rowsUpserted, 10),
	})
}

// securitiesUpdateJob refreshes the security universe
func (cs *CronService) securitiesUpdateJob() {
	jobName := "Securities UPDATE Job "

	rowsInserted, err := cs.securityService.UpdateSecurities()
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"rows_inserted": strconv.FormatInt(rowsInserted, 10),
	})
}

// reconcileJob runs one reconciliation pass with a deadline
func (cs *CronService) reconcileJob() {
	jobName := "Industry RECONCILE Job "

	timeout := time.Duration(cs.cfg.ReconcileTimeoutMin) * time.Minute
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	report, err := cs.reconcileService.Run(ctx)
	if err != nil {
		zaplogger.Error(jobName, zaplogger.Fields{
			"error": err.Error(),
		})
		return
	}
	zaplogger.Info(jobName, zaplogger.Fields{
		"leaves_processed":     report.LeavesProcessed,
		"leaves_failed":        len(report.LeavesFailed),
		"securities_confirmed": report.SecuritiesConfirmed,
		"securities_demoted":   report.SecuritiesDemoted,
	})
}
