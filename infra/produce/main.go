package produce

import amqp "github.com/rabbitmq/amqp091-go"

type Produce struct {
	JobService *JobService
}

func InitProduce(channel *amqp.Channel) (*Produce, error) {
	jobService, err := InitJobService(channel)
	if err != nil {
		return nil, err
	}

	return &Produce{
		JobService: jobService,
	}, nil
}
