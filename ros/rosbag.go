// Package ros reads the tracker's input topics from ROS bags and converts ROS messages into
// tracker types.
package ros

import (
	"encoding/json"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/edaniels/gobag/rosbag"
	"github.com/pkg/errors"
	"go.viam.com/utils"
)

// ReadBag reads the contents of a rosbag into a gobag data structure.
func ReadBag(filename string) (*rosbag.RosBag, error) {
	//nolint:gosec
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open input file")
	}
	defer utils.UncheckedErrorFunc(f.Close)

	rb := rosbag.NewRosBag()
	if err := rb.Read(f); err != nil {
		return nil, errors.Wrapf(err, "unable to read ros bag %s", filename)
	}
	return rb, nil
}

// Message is one raw message of a bag, decoded from the JSON form gobag produces.
type Message struct {
	Topic string
	// Recorded is when the bag recorder received the message.
	Recorded time.Time
	Data     map[string]interface{}
}

type bagLine struct {
	Meta Time                   `json:"meta"`
	Data map[string]interface{} `json:"data"`
}

// ReadMessages returns the messages of the given topics ordered by record time. Topics missing
// from the bag yield no messages.
func ReadMessages(rb *rosbag.RosBag, topics ...string) ([]Message, error) {
	wanted := make(map[string]string, len(topics))
	for _, topic := range topics {
		wanted[topicKey(topic)] = topic
	}

	if err := rb.ParseTopicsToJSON(
		"",
		func(int64) bool { return true },
		func(t string) bool {
			_, ok := wanted[topicKey(t)]
			return ok
		},
		false,
	); err != nil {
		return nil, errors.Wrapf(err, "error while parsing bag to JSON")
	}

	var all []Message
	for _, topic := range topics {
		key := topicKey(topic)
		msgs := rb.TopicsAsJSON[key]
		if msgs == nil || wanted[key] != topic {
			continue
		}
		// each topic is only read once
		delete(wanted, key)
		for {
			data, err := msgs.ReadBytes('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return nil, err
			}
			var line bagLine
			if err := json.Unmarshal(data, &line); err != nil {
				return nil, errors.Wrapf(err, "malformed message on %s", topic)
			}
			all = append(all, Message{Topic: topic, Recorded: line.Meta.Time(), Data: line.Data})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Recorded.Before(all[j].Recorded)
	})
	return all, nil
}

// topicKey is the name gobag files a topic's messages under.
func topicKey(topic string) string {
	topic = strings.TrimPrefix(topic, "/")
	return strings.ToLower(strings.ReplaceAll(topic, "/", "_"))
}
