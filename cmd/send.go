package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"quarry/internal/mq"
)

var (
	sendNameServer string
	sendGroup      string
	sendTopic      string
	sendTag        string
	sendKey        string
	sendCount      int
	sendAsync      bool
)

var sendCmd = &cobra.Command{
	Use:   "send [body]",
	Short: "Send messages to a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body := args[0]

		producer, err := mq.NewProducer(sendNameServer, sendGroup)
		if err != nil {
			return fmt.Errorf("failed to create producer: %w", err)
		}
		if err := producer.Start(); err != nil {
			return fmt.Errorf("failed to start producer: %w", err)
		}
		defer func() {
			if err := producer.Shutdown(); err != nil {
				log.Warn().Err(err).Msg("Producer shutdown failed")
			}
		}()

		ctx := context.Background()
		start := time.Now()

		for i := 0; i < sendCount; i++ {
			payload := body
			if sendCount > 1 {
				payload = fmt.Sprintf("%s #%d", body, i)
			}

			var msgID string
			switch {
			case sendAsync:
				done, err := producer.SendAsync(ctx, sendTopic, sendTag, payload)
				if err != nil {
					return fmt.Errorf("failed to dispatch message %d: %w", i, err)
				}
				outcome := <-done
				if outcome.Err != nil {
					return fmt.Errorf("async send %d failed: %w", i, outcome.Err)
				}
				msgID = outcome.MsgID
			case sendKey != "":
				msgID, err = producer.SendSyncWithKey(ctx, sendTopic, sendTag, sendKey, payload)
			default:
				msgID, err = producer.SendSync(ctx, sendTopic, sendTag, payload)
			}
			if err != nil {
				return fmt.Errorf("failed to send message %d: %w", i, err)
			}

			fmt.Printf("sent %s\n", msgID)
		}

		elapsed := time.Since(start)
		if sendCount > 1 {
			fmt.Printf("%d messages in %s (%.2f ms avg)\n",
				sendCount, elapsed, float64(elapsed.Milliseconds())/float64(sendCount))
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVarP(&sendNameServer, "nameserver", "n", "127.0.0.1:9876", "registry endpoint (host:port)")
	sendCmd.Flags().StringVarP(&sendGroup, "group", "g", "", "producer group (generated if empty)")
	sendCmd.Flags().StringVarP(&sendTopic, "topic", "t", "DEMO_TOPIC", "destination topic")
	sendCmd.Flags().StringVar(&sendTag, "tag", "", "message tag")
	sendCmd.Flags().StringVarP(&sendKey, "key", "k", "", "business key")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "number of messages to send")
	sendCmd.Flags().BoolVar(&sendAsync, "async", false, "use asynchronous send")
}
