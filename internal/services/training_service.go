package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Wikid82/phishguard/internal/models"
)

var ErrTrainingCaseNotFound = errors.New("training case not found")

// DefaultTrainingCases are the lessons installed by Seed.
var DefaultTrainingCases = []models.TrainingCase{
	{
		Title:       "Phishing de Banco Falso",
		Description: "Site que imita página de login de banco solicitando credenciais",
		PayloadURL:  "https://exemplo-golpe.com/login-banco",
		Lesson: models.TrainingLesson{
			Tips: []string{
				"Sempre verifique o domínio completo antes de inserir dados",
				"Bancos legítimos nunca pedem senha completa por email/SMS",
				"Procure pelo cadeado e certificado SSL válido",
			},
			Signals: []string{
				"Domínio similar mas diferente do oficial",
				"Formulário pedindo senha completa",
				"Certificado SSL inválido",
			},
		},
	},
	{
		Title:       "Golpe de Loteria",
		Description: "Site falso anunciando prêmio de loteria",
		PayloadURL:  "https://exemplo-golpe.com/loteria-premio",
		Lesson: models.TrainingLesson{
			Tips: []string{
				"Nunca acredite em prêmios que você não participou",
				"Desconfie de sites que pedem dados pessoais para 'liberar prêmio'",
				"Verifique sempre a autenticidade do site oficial",
			},
			Signals: []string{
				"Promessa de prêmio sem participação",
				"Solicitação de dados bancários",
				"Urgência para 'resgatar prêmio'",
			},
		},
	},
	{
		Title:       "Phishing de E-commerce",
		Description: "Site falso imitando loja online conhecida",
		PayloadURL:  "https://exemplo-golpe.com/loja-falsa",
		Lesson: models.TrainingLesson{
			Tips: []string{
				"Verifique sempre a URL completa da loja",
				"Desconfie de preços muito abaixo do mercado",
				"Procure por avaliações e certificações de segurança",
			},
			Signals: []string{
				"Preços suspeitamente baixos",
				"Forma de pagamento apenas por transferência",
				"Ausência de informações de contato",
			},
		},
	},
}

type TrainingService struct {
	db *gorm.DB
}

func NewTrainingService(db *gorm.DB) *TrainingService {
	return &TrainingService{db: db}
}

// Seed inserts the default cases, skipping titles that already exist.
// It returns the number of cases added.
func (s *TrainingService) Seed() (int64, error) {
	var added int64
	for _, c := range DefaultTrainingCases {
		tc := c
		res := s.db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "title"}}, DoNothing: true}).Create(&tc)
		if res.Error != nil {
			return added, res.Error
		}
		added += res.RowsAffected
	}
	return added, nil
}

func (s *TrainingService) List() ([]models.TrainingCase, error) {
	var cases []models.TrainingCase
	err := s.db.Order("id asc").Find(&cases).Error
	return cases, err
}

func (s *TrainingService) Get(id uint) (*models.TrainingCase, error) {
	var tc models.TrainingCase
	if err := s.db.First(&tc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTrainingCaseNotFound
		}
		return nil, err
	}
	return &tc, nil
}
