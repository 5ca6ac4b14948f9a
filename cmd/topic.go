package cmd

import (
	"context"
	"fmt"

	"github.com/apache/rocketmq-client-go/v2/admin"
	"github.com/apache/rocketmq-client-go/v2/primitive"
	"github.com/spf13/cobra"
)

var (
	topicNameServer string
	topicBrokerAddr string
)

var topicCmd = &cobra.Command{
	Use:   "topic",
	Short: "Manage topics on a running cluster",
}

var topicCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adm, err := newAdmin()
		if err != nil {
			return err
		}
		defer adm.Close()

		if err := adm.CreateTopic(context.Background(),
			admin.WithTopicCreate(args[0]),
			admin.WithBrokerAddrCreate(topicBrokerAddr),
		); err != nil {
			return fmt.Errorf("failed to create topic %q: %w", args[0], err)
		}

		fmt.Printf("created topic %s\n", args[0])
		return nil
	},
}

var topicDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		adm, err := newAdmin()
		if err != nil {
			return err
		}
		defer adm.Close()

		if err := adm.DeleteTopic(context.Background(),
			admin.WithTopicDelete(args[0]),
			admin.WithBrokerAddrDelete(topicBrokerAddr),
		); err != nil {
			return fmt.Errorf("failed to delete topic %q: %w", args[0], err)
		}

		fmt.Printf("deleted topic %s\n", args[0])
		return nil
	},
}

func newAdmin() (admin.Admin, error) {
	adm, err := admin.NewAdmin(
		admin.WithResolver(primitive.NewPassthroughResolver([]string{topicNameServer})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin client: %w", err)
	}
	return adm, nil
}

func init() {
	topicCmd.PersistentFlags().StringVarP(&topicNameServer, "nameserver", "n", "127.0.0.1:9876", "registry endpoint (host:port)")
	topicCmd.PersistentFlags().StringVarP(&topicBrokerAddr, "broker", "b", "127.0.0.1:10911", "broker endpoint (host:port)")

	topicCmd.AddCommand(topicCreateCmd)
	topicCmd.AddCommand(topicDeleteCmd)
}
