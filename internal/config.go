package internal

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`
	LimitMessages  *int   `env:"LIMIT_MESSAGES"`
	ParticipantID  string `env:"PARTICIPANT_ID"`
}
