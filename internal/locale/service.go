package locale

import (
	"context"
	"log/slog"

	apperrors "github.com/Proton-105/stepbot/internal/errors"
)

// Service resolves user languages against the supported list.
type Service struct {
	repo      Repository
	languages []Language
	log       *slog.Logger
}

func NewService(repo Repository, languages []Language, log *slog.Logger) *Service {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, languages: languages, log: log}
}

// Languages returns the supported languages, default first.
func (s *Service) Languages() []Language {
	return s.languages
}

// Default is the first configured language.
func (s *Service) Default() string {
	return s.languages[0].Code
}

// Supported returns the supported code for locale, if any.
func (s *Service) Supported(locale string) (Language, bool) {
	code := Normalize(locale)
	for _, l := range s.languages {
		if l.Code == code {
			return l, true
		}
	}
	return Language{}, false
}

// Resolve picks the stored language, then the platform locale, then the default.
func (s *Service) Resolve(ctx context.Context, userID int64, platformLocale string) string {
	if userID != 0 {
		stored, ok, err := s.repo.Get(ctx, userID)
		if err != nil {
			s.log.Warn("user locale lookup failed", "user_id", userID, "error", err)
		} else if ok {
			if l, supported := s.Supported(stored); supported {
				return l.Code
			}
		}
	}

	if l, ok := s.Supported(platformLocale); ok {
		return l.Code
	}
	return s.Default()
}

// SoftSet records platformLocale for a user who has not chosen a language yet.
func (s *Service) SoftSet(ctx context.Context, userID int64, platformLocale string) {
	if userID == 0 {
		return
	}
	l, ok := s.Supported(platformLocale)
	if !ok {
		return
	}
	if err := s.repo.SetIfAbsent(ctx, userID, l.Code); err != nil {
		s.log.Warn("soft-set user locale failed", "user_id", userID, "error", err)
	}
}

// Set stores an explicit choice. It returns false for unsupported languages.
func (s *Service) Set(ctx context.Context, userID int64, locale string) (Language, bool, error) {
	l, ok := s.Supported(locale)
	if !ok {
		return Language{}, false, nil
	}
	err := apperrors.WithRetry(ctx, func() error {
		if err := s.repo.Set(ctx, userID, l.Code); err != nil {
			return apperrors.NewStorageError("set user locale", err)
		}
		return nil
	})
	if err != nil {
		return Language{}, false, err
	}
	return l, true, nil
}
